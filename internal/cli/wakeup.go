package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wakeguard/wakeguard/internal/logging"
)

// wakeupCmd groups the wakeup configuration and trigger commands
var wakeupCmd = &cobra.Command{
	Use:   "wakeup",
	Short: "Inspect and control the wakeup configuration",
	Long: `Manage the wakeup subsystem: enable or disable it, adjust which models
and accounts it covers, fire a single test trigger, or run one reset-detection
cycle by hand.`,
}

var wakeupShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current wakeup configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		cfg, err := app.State.LoadWakeupConfig()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var wakeupEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable wakeup triggering",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(true)
	},
}

var wakeupDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable wakeup triggering",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(false)
	},
}

func setEnabled(enabled bool) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	cfg, err := app.State.LoadWakeupConfig()
	if err != nil {
		return err
	}
	cfg.Enabled = enabled
	if err := app.State.SaveWakeupConfig(cfg); err != nil {
		return err
	}
	logging.NewEvent(logging.ConfigChange, logging.StatusSuccess).
		WithDetails(map[string]interface{}{"enabled": enabled}).
		Emit(app.Logger)
	if enabled {
		fmt.Println("Wakeup enabled.")
	} else {
		fmt.Println("Wakeup disabled.")
	}
	return nil
}

var wakeupConfigFlags struct {
	Models      string
	Accounts    string
	NoAccounts  bool
	AllAccounts bool
	Prompt      string
	MaxTokens   int
	Cooldown    int
	WakeOnReset string
}

var wakeupConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Update wakeup configuration fields",
	Long: `Update the persisted wakeup configuration. Only flags that are set are
applied; the document is always written back as a whole.

Examples:
  wakeguard wakeup config --models gemini-pro,gemini-flash
  wakeguard wakeup config --accounts a@x.com,b@y.com
  wakeguard wakeup config --all-accounts --cooldown 120
  wakeguard wakeup config --no-accounts`,
	RunE: runWakeupConfig,
}

func runWakeupConfig(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	cfg, err := app.State.LoadWakeupConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("models") {
		cfg.SelectedModels = splitList(wakeupConfigFlags.Models)
	}
	switch {
	case wakeupConfigFlags.NoAccounts:
		// Explicit empty selection: trigger no accounts at all.
		empty := []string{}
		cfg.SelectedAccounts = &empty
	case wakeupConfigFlags.AllAccounts:
		// Remove the selection entirely and fall back to active-account
		// resolution.
		cfg.SelectedAccounts = nil
	case cmd.Flags().Changed("accounts"):
		selected := splitList(wakeupConfigFlags.Accounts)
		cfg.SelectedAccounts = &selected
	}
	if cmd.Flags().Changed("prompt") {
		cfg.CustomPrompt = wakeupConfigFlags.Prompt
	}
	if cmd.Flags().Changed("max-tokens") {
		cfg.MaxOutputTokens = wakeupConfigFlags.MaxTokens
	}
	if cmd.Flags().Changed("cooldown") {
		cfg.ResetCooldownMinutes = wakeupConfigFlags.Cooldown
	}
	if cmd.Flags().Changed("wake-on-reset") {
		cfg.WakeOnReset = strings.EqualFold(wakeupConfigFlags.WakeOnReset, "true")
	}

	if err := app.State.SaveWakeupConfig(cfg); err != nil {
		return err
	}
	logging.NewEvent(logging.ConfigChange, logging.StatusSuccess).Emit(app.Logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

var wakeupTestFlags struct {
	Model   string
	Account string
	Prompt  string
}

var wakeupTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Fire a single test trigger against one model",
	RunE:  runWakeupTest,
}

func runWakeupTest(cmd *cobra.Command, args []string) error {
	if wakeupTestFlags.Model == "" {
		return fmt.Errorf("--model is required")
	}

	app, err := buildApp()
	if err != nil {
		return err
	}

	account := wakeupTestFlags.Account
	if account == "" {
		resolved, err := app.Resolver.Resolve(nil)
		if err != nil {
			return err
		}
		if len(resolved) == 0 {
			return fmt.Errorf("no usable account; pass --account or add one")
		}
		account = resolved[0]
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.API.Timeout*2)
	defer cancel()

	result, err := app.Executor.TestTrigger(ctx, wakeupTestFlags.Model, account, wakeupTestFlags.Prompt)
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Success {
		fmt.Printf("OK: %s answered in %dms\n", result.ModelID, result.DurationMs)
		if result.Response != "" {
			fmt.Printf("Response: %s\n", result.Response)
		}
	} else {
		fmt.Printf("FAILED: %s: %s\n", result.ModelID, result.Error)
	}
	return nil
}

var wakeupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reset-detection cycle now",
	RunE:  runWakeupRun,
}

func runWakeupRun(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	snapshot, err := app.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch quota snapshot: %w", err)
	}

	outcome, err := app.Orchestrator.DetectResetAndTrigger(ctx, *snapshot)
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	if !outcome.Triggered {
		fmt.Println("Nothing to do: no unused models past cooldown.")
		return nil
	}
	fmt.Printf("Triggered %d model(s): %s\n", len(outcome.TriggeredModels), strings.Join(outcome.TriggeredModels, ", "))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func init() {
	wakeupConfigCmd.Flags().StringVar(&wakeupConfigFlags.Models, "models", "", "Comma-separated model IDs to wake")
	wakeupConfigCmd.Flags().StringVar(&wakeupConfigFlags.Accounts, "accounts", "", "Comma-separated account emails to trigger")
	wakeupConfigCmd.Flags().BoolVar(&wakeupConfigFlags.NoAccounts, "no-accounts", false, "Explicitly trigger no accounts")
	wakeupConfigCmd.Flags().BoolVar(&wakeupConfigFlags.AllAccounts, "all-accounts", false, "Clear the account selection (fallback resolution)")
	wakeupConfigCmd.Flags().StringVar(&wakeupConfigFlags.Prompt, "prompt", "", "Custom wakeup prompt")
	wakeupConfigCmd.Flags().IntVar(&wakeupConfigFlags.MaxTokens, "max-tokens", 0, "Max output tokens (0 = unlimited)")
	wakeupConfigCmd.Flags().IntVar(&wakeupConfigFlags.Cooldown, "cooldown", 0, "Reset cooldown in minutes")
	wakeupConfigCmd.Flags().StringVar(&wakeupConfigFlags.WakeOnReset, "wake-on-reset", "", "Enable quota-reset trigger mode (true/false)")

	wakeupTestCmd.Flags().StringVar(&wakeupTestFlags.Model, "model", "", "Model ID to trigger")
	wakeupTestCmd.Flags().StringVar(&wakeupTestFlags.Account, "account", "", "Account email (default: fallback resolution)")
	wakeupTestCmd.Flags().StringVar(&wakeupTestFlags.Prompt, "prompt", "", "Prompt to send (default: minimal prompt)")

	wakeupCmd.AddCommand(wakeupShowCmd, wakeupEnableCmd, wakeupDisableCmd, wakeupConfigCmd, wakeupTestCmd, wakeupRunCmd)
	RootCmd.AddCommand(wakeupCmd)
}
