package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ContractsOrchestrator/internal/transport/httpapi"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), httpapi.Version)
			return err
		},
	}
}
