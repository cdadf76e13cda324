package cli

import (
	"log/slog"
	"os"

	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/logging"
)

const configPathEnv = "ORCHESTRATOR_CONFIG"

// loadConfig applies the global flags on top of the regular config layering.
func loadConfig(flags *GlobalFlags) (config.Config, *slog.Logger, error) {
	if flags.ConfigPath != "" {
		if err := os.Setenv(configPathEnv, flags.ConfigPath); err != nil {
			return config.Config{}, nil, err
		}
	}
	cfg := config.Load()
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	return cfg, logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format), nil
}
