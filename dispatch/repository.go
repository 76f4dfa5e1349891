package dispatch

import (
	"context"
	"fmt"
	"iter"

	"github.com/gehhilfe/shopflux/core"
)

// Repository orchestrates one use case invocation over an event-sourced
// aggregate: hydrate from the audit log, let the caller mutate, then push
// the raised events through the dispatcher. The bridge handler is what
// actually persists them, so a repository save is a dispatch.
type Repository struct {
	store      core.Store
	registry   *core.Registry
	dispatcher *Dispatcher
}

func NewRepository(store core.Store, registry *core.Registry, dispatcher *Dispatcher) *Repository {
	return &Repository{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// Get rebuilds the aggregate from its stored history. Returns
// core.ErrNoStream when the aggregate has no events.
func (r *Repository) Get(ctx context.Context, id string, agg core.Aggregate) error {
	stored, err := r.store.Events(ctx, id, 0)
	if err != nil {
		return err
	}
	return core.LoadFromHistory(agg, r.envelopes(stored))
}

func (r *Repository) envelopes(stored iter.Seq2[core.StoredEvent, error]) iter.Seq2[core.Envelope, error] {
	return func(yield func(core.Envelope, error) bool) {
		for se, err := range stored {
			if err != nil {
				yield(core.Envelope{}, err)
				return
			}
			env, err := r.registry.Envelope(se)
			if !yield(env, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Save dispatches the aggregate's uncommitted events sequentially and clears
// the buffer only after every dispatch succeeded. On failure the buffer is
// left intact; a concurrency conflict surfaced by the audit write means the
// caller should reload and retry the whole operation.
func (r *Repository) Save(ctx context.Context, agg core.Aggregate) error {
	events := agg.Uncommitted()
	if len(events) == 0 {
		return nil
	}

	if err := r.dispatcher.DispatchAll(ctx, events); err != nil {
		return fmt.Errorf("save aggregate %s: %w", agg.ID(), err)
	}

	agg.MarkCommitted()
	return nil
}
