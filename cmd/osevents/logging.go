package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alfredjeanlab/osevents/internal/config"
)

// installLogger builds the process logger from config and makes it the
// slog default.
func installLogger(c *config.Config) *slog.Logger {
	logger := newLogger(os.Stderr, c.LogFormat, c.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
