package workspace

import (
	"context"
	"log/slog"
)

// LogWriter records file writes and route registrations without applying
// them. It is used when no workspace service is configured.
type LogWriter struct {
	logger *slog.Logger
}

// NewLogWriter creates a LogWriter.
func NewLogWriter(logger *slog.Logger) *LogWriter {
	return &LogWriter{logger: logger.With("component", "workspace_log")}
}

// WriteFile implements task.FileWriter.
func (w *LogWriter) WriteFile(ctx context.Context, location, content string) error {
	w.logger.InfoContext(ctx, "artifact write recorded",
		"location", location,
		"bytes", len(content))
	return nil
}

// RegisterRoute implements task.RouteRegistrar.
func (w *LogWriter) RegisterRoute(ctx context.Context, symbol, location string) error {
	w.logger.InfoContext(ctx, "route registration recorded",
		"symbol", symbol,
		"location", location)
	return nil
}
