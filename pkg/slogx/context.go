package slogx

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithContext returns a child of ctx that carries logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext never returns nil. Contexts without a logger fall back to
// slog.Default so background jobs can share the same call sites.
func FromContext(ctx context.Context) *slog.Logger {
	logger, _ := ctx.Value(loggerKey{}).(*slog.Logger)
	if logger == nil {
		logger = slog.Default()
	}
	return logger
}
