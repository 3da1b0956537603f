package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/autobuild/internal/config"
	"github.com/phrazzld/autobuild/internal/platform/logger"
)

// loadAppConfig loads the application configuration from the config file
// and environment variables.
func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupAppLogger configures the process-wide JSON logger on stdout for the
// server.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"storage_backend", cfg.Storage.Backend)
	return l, nil
}

// setupCLILogger logs to w, keeping stdout free for command output.
func setupCLILogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logger.New(w, cfg.Server.LogLevel)
}
