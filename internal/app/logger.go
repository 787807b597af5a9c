package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	return NewLoggerTo(cfg, os.Stdout)
}

// NewLoggerTo writes to out instead of stdout.
func NewLoggerTo(cfg *Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	logger := slog.New(handler)
	if cfg != nil {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}
