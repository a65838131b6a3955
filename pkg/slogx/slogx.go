// Package slogx builds the service logger and carries a request-scoped
// logger through context.
package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Service string
	Version string
	Env     string // "dev" adds source locations
	Level   string
	Format  string // "json" (default) or "text"

	// Output defaults to os.Stdout.
	Output io.Writer
}

func (c Config) handler() slog.Handler {
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		AddSource: c.Env == "dev",
		Level:     ParseLevel(c.Level),
	}

	if strings.EqualFold(c.Format, "text") {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// New builds the process logger from cfg and makes it the slog default.
func New(cfg Config) *slog.Logger {
	logger := slog.New(cfg.handler().WithAttrs([]slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel accepts the names slog understands plus "warning".
// Anything unrecognised is info.
func ParseLevel(name string) slog.Level {
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
