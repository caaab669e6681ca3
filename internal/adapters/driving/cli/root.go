// Package cli implements the command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ReylordDev/psycluster/internal/core/ports/driven"
	"github.com/ReylordDev/psycluster/internal/core/ports/driving"
	"github.com/ReylordDev/psycluster/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Services the commands operate on, injected by the composition root
// before Execute.
var (
	dispatcher  driving.Dispatcher
	broker      driving.Broker
	configStore driven.ConfigStore
)

// Services bundles everything the commands need.
type Services struct {
	Dispatcher driving.Dispatcher
	Broker     driving.Broker
	Config     driven.ConfigStore
}

// SetServices wires the commands to their backing services.
func SetServices(s *Services) {
	dispatcher = s.Dispatcher
	broker = s.Broker
	configStore = s.Config
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "psycluster",
	Short: "Broker for the response clustering pipeline",
	Long: `psycluster coordinates the clustering pipeline: it launches the
worker process, tracks pipeline progress, persists results, and serves
them to clients over a websocket gateway or in the terminal.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
