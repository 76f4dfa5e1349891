package dispatch

import (
	"context"
	"log/slog"

	"github.com/gehhilfe/shopflux/core"
)

// WithLogging wraps a handler so every handled event is logged with its
// envelope context.
func WithLogging(logger *slog.Logger, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, env core.Envelope) error {
		l := logger.With(
			slog.String("event_type", env.EventType),
			slog.String("aggregate_id", env.AggregateID),
			slog.Uint64("version", uint64(env.Version)),
		)

		l.DebugContext(ctx, "event handling started")

		err := next.Handle(ctx, env)
		if err != nil {
			l.ErrorContext(ctx, "error handling event", slog.Any("error", err))
		} else {
			l.DebugContext(ctx, "event handled")
		}

		return err
	})
}
