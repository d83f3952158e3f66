// Package logging defines the structured-logging interface used across
// credkeeper and its log/slog implementation.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// Args are key/value pairs:
//
//	log.Info(ctx, "user registered", "user_id", id)
//
// Values under credential keys (see Redacted) never reach the output of
// loggers built by NewJSONLogger.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
