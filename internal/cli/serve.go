package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ContractsOrchestrator/internal/app"
)

func newServeCmd(flags *GlobalFlags) *cobra.Command {
	var addr string
	var syncEnabled bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the orchestration and catalog endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("sync") {
				cfg.Sync.Enabled = syncEnabled
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace())
				defer cancel()
				if err := application.Close(closeCtx); err != nil {
					logger.Error("shutdown", "error", err)
				}
			}()

			if err := application.Run(ctx); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&syncEnabled, "sync", false, "run the periodic catalog sync")
	return cmd
}
