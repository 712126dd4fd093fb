package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Deployments set LOG_FORMAT=json for
// log shipping; the default text handler is for packhouse-floor terminals and
// local development.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
