package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wakeguard/wakeguard/internal/detector"
	"github.com/wakeguard/wakeguard/internal/store"
)

var statusFlags struct {
	Trend bool
	Model string
	Limit int
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st", "quota"},
	Short:   "Show the current quota snapshot per model",
	Long: `Fetch the current quota snapshot and display remaining percentage and
time until reset for each model. Models meeting the unused-and-about-to-reset
heuristic are marked WAKE.

Examples:
  # Show current quota
  wakeguard status

  # Output as JSON
  wakeguard status --json | jq '.'

  # Show recorded quota history for one model (daemon mode records snapshots)
  wakeguard status --trend --model gemini-pro`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.Trend, "trend", false, "Show recorded snapshot history instead of a live fetch")
	statusCmd.Flags().StringVar(&statusFlags.Model, "model", "", "Filter trend output to one model")
	statusCmd.Flags().IntVar(&statusFlags.Limit, "limit", 30, "Maximum trend rows to show")
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	if statusFlags.Trend {
		return runStatusTrend(app)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.API.Timeout)
	defer cancel()

	snapshot, err := app.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch quota snapshot: %w", err)
	}

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	fmt.Printf("Account: %s  (collected %s)\n\n", snapshot.AccountEmail, snapshot.CollectedAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tREMAINING\tRESETS IN\tSTATE")
	for _, m := range snapshot.Models {
		remaining := "-"
		if m.RemainingPercentage != nil {
			remaining = fmt.Sprintf("%.1f%%", *m.RemainingPercentage)
		}
		resetIn := "-"
		if d, ok := m.ResetIn(); ok {
			resetIn = d.Round(time.Minute).String()
		}
		state := ""
		switch {
		case m.IsExhausted:
			state = "EXHAUSTED"
		case detector.IsModelUnused(m):
			state = "WAKE"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ModelID, remaining, resetIn, state)
	}
	return w.Flush()
}

// runStatusTrend renders rows from the snapshot log written by the daemon.
func runStatusTrend(app *App) error {
	snapshots, err := store.NewSnapshotStoreWithRetention(app.Config.Paths.DBPath, 0)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	rows, err := snapshots.ListSnapshots(statusFlags.Model, statusFlags.Limit)
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No snapshots recorded yet. Run the daemon (wakeguard serve) to collect them.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMODEL\tREMAINING\tRESETS IN\tEXHAUSTED")
	for _, r := range rows {
		remaining := "-"
		if r.RemainingPct != nil {
			remaining = fmt.Sprintf("%.1f%%", *r.RemainingPct)
		}
		resetIn := "-"
		if r.ResetInMs != nil {
			resetIn = (time.Duration(*r.ResetInMs) * time.Millisecond).Round(time.Minute).String()
		}
		exhausted := ""
		if r.Exhausted {
			exhausted = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.CollectedAt.Local().Format(time.DateTime), r.ModelID, remaining, resetIn, exhausted)
	}
	return w.Flush()
}
