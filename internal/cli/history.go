package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

var historyFlags struct {
	Limit int
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"hist"},
	Short:   "Show recent trigger history",
	Long: `Display the recent trigger history, newest first. Every trigger attempt,
successful or failed, leaves exactly one record per model.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "Maximum records to show")
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	history, err := app.State.RecentHistory(historyFlags.Limit)
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	if len(history) == 0 {
		fmt.Println("No triggers recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMODEL\tACCOUNT\tSOURCE\tRESULT\tDURATION")
	for _, r := range history {
		result := "ok"
		if !r.Success {
			result = "FAILED"
			if r.Error != "" {
				result = "FAILED: " + truncate(r.Error, 40)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\n",
			r.Timestamp.Local().Format(time.DateTime),
			strings.Join(r.Models, ","),
			r.AccountEmail,
			r.TriggerSource,
			result,
			r.DurationMs,
		)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
