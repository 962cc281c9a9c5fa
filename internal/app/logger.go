package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger from LOG_FORMAT: "json" selects
// slog's JSON handler, anything else logs as text. Source positions are
// attached to every record.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
