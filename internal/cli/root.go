package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DataDir string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "wakeguard",
	Short: "WakeGuard - AI model quota monitoring and wakeup triggers",
	Long: `WakeGuard monitors per-model usage quota for an AI coding assistant and
keeps unused quota from going to waste: when a model sits at full quota
shortly after its reset window, WakeGuard sends it a minimal prompt on
every usable account.

Available Commands:
  status     Show the current quota snapshot per model
  history    Show recent trigger history
  wakeup     Inspect and control the wakeup configuration
  serve      Run the wakeup daemon (scheduler + status API)

Use "wakeguard [command] --help" for more information about a command.`,
}

var globalFlags GlobalFlags

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("WAKEGUARD_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DataDir, "data-dir", "", "Override the state directory")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	InitRoot()
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of WakeGuard",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wakeguard %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
