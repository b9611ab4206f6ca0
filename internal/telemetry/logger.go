// Package telemetry wires up the process-wide structured logger and the
// Prometheus metrics registry. These are the only two ambient singletons
// the rest of the core is allowed to depend on implicitly (§9 REDESIGN FLAGS).
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Format string // "json" or "text"
	Level  string // debug, info, warn, error
	// FilePath, when set, tees log output to a rotating file alongside stdout.
	// Used by on-prem gateway deployments with no external log aggregator.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger creates a structured logger per LoggerOptions.
func NewLogger(opts LoggerOptions) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(opts.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if opts.FilePath != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    maxOr(opts.MaxSizeMB, 100),
			MaxBackups: maxOr(opts.MaxBackups, 3),
			MaxAge:     maxOr(opts.MaxAgeDays, 28),
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(handler)
}

func maxOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
