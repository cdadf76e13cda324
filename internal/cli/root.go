// Package cli is the command-line entry point of the orchestrator.
package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

func newRootCmd() *cobra.Command {
	var flags GlobalFlags

	root := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Contract assistant: tool-calling orchestration and SAM.gov ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "YAML config file (overrides ORCHESTRATOR_CONFIG)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(newServeCmd(&flags))
	root.AddCommand(newSyncCmd(&flags))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
