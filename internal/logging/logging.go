// Package logging configures the daemon's structured logger. All packages
// log through log/slog rather than the plain "log" package, following the
// convention the teacher codebase already uses for its newer subsystems.
package logging

import (
	"log/slog"
	"os"
)

// Setup installs a slog handler writing to stderr as the default logger:
// JSON when jsonOutput is true, text otherwise. debug
// enables slog.LevelDebug; otherwise the daemon logs at Info and above.
func Setup(debug bool, jsonOutput bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
