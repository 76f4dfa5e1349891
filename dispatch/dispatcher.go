package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	slogctx "github.com/veqryn/slog-context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gehhilfe/shopflux/core"
)

// Handler processes a dispatched domain event.
type Handler interface {
	Handle(ctx context.Context, env core.Envelope) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, env core.Envelope) error

func (h HandlerFunc) Handle(ctx context.Context, env core.Envelope) error {
	return h(ctx, env)
}

// Dispatcher routes raised domain events to their registered handlers. The
// registry is populated once during process initialization; after that the
// dispatch path only reads it, so no runtime locking is needed.
//
// A given event type can have zero, one, or many handlers. Handlers
// registered via SubscribeAll receive every event regardless of type.
type Dispatcher struct {
	tracer   trace.Tracer
	handlers map[string][]Handler
	all      []Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		tracer:   otel.Tracer("shopflux/dispatch"),
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers the handler for the given concrete event types.
func (d *Dispatcher) Subscribe(h Handler, eventTypes ...string) {
	for _, name := range eventTypes {
		d.handlers[name] = append(d.handlers[name], h)
	}
}

// SubscribeAll registers the handler for every event type, current and
// future. This is the broadest possible subscription.
func (d *Dispatcher) SubscribeAll(h Handler) {
	d.all = append(d.all, h)
}

// DispatchEvent invokes every handler registered for the event's type
// concurrently and waits for all of them. With no handlers registered it
// logs and returns nil. If any handler fails, the siblings still run to
// completion and the failures are logged and returned joined together.
func (d *Dispatcher) DispatchEvent(ctx context.Context, env core.Envelope) error {
	ctx, span := d.tracer.Start(ctx, "dispatch.event",
		trace.WithAttributes(
			attribute.String("event.type", env.EventType),
			attribute.String("aggregate.id", env.AggregateID),
			attribute.Int64("event.version", int64(env.Version)),
		),
	)
	defer span.End()

	logger := slogctx.FromCtx(ctx)

	handlers := make([]Handler, 0, len(d.handlers[env.EventType])+len(d.all))
	handlers = append(handlers, d.handlers[env.EventType]...)
	handlers = append(handlers, d.all...)

	if len(handlers) == 0 {
		logger.Debug("no handlers registered for event", slog.String("event_type", env.EventType))
		return nil
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Handle(ctx, env); err != nil {
				errs[i] = fmt.Errorf("handler %T: %w", h, err)
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		logger.Error("event dispatch failed",
			slog.String("event_type", env.EventType),
			slog.String("aggregate_id", env.AggregateID),
			slog.Uint64("version", uint64(env.Version)),
			slog.Any("error", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// DispatchAll dispatches the events strictly in order, one event fully
// handled before the next begins. It fails fast: the first event whose
// dispatch errors stops the batch and later events are not dispatched. The
// returned error tells the caller where the batch halted.
func (d *Dispatcher) DispatchAll(ctx context.Context, envs []core.Envelope) error {
	for i, env := range envs {
		if err := d.DispatchEvent(ctx, env); err != nil {
			return fmt.Errorf("dispatch halted at event %d/%d (%s v%d): %w", i+1, len(envs), env.EventType, env.Version, err)
		}
	}
	return nil
}
