// Greeac bridges a Gree split air conditioner's UART to the network.
//
// The bridge speaks the indoor unit's 50-byte frame protocol over a serial
// adapter, keeps the command frame in sync with what the unit reports, and
// exposes the unit through a REST and WebSocket API advertised over mDNS.
// The same binary carries the tools for working with the protocol: frame
// decode/encode, a direct UART send, a simulated unit and a terminal monitor.
//
// Usage:
//
//	greeac [command] [flags]
//
// See 'greeac --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "greeac",
	Short: "Gree air conditioner UART bridge",
	Long: `A network bridge for Gree split air conditioners.

'greeac run' talks to the indoor unit over its UART (4800 baud, 8E1) and
serves its state and controls over HTTP and WebSocket. The other commands
help with wiring, debugging and scripting.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The bridge configures logging from its config file
		if cmd.Name() == "run" {
			return nil
		}
		return logging.Initialize(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config and "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("greeac %s\n", version.Full())
	},
}
