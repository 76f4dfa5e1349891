package core

import (
	"context"
	"iter"
)

// Store is the append-only audit log. Events are grouped into per-aggregate
// streams ordered by Version, and the whole log carries a global Sequence
// order across streams.
type Store interface {
	// Save appends the given events to the aggregate's stream. The stream's
	// current highest version must equal expected, otherwise Save fails with
	// a *ConcurrencyError and appends nothing. On success the stored versions
	// are expected+1, expected+2, ... in input order, and each event's
	// Sequence and CreatedAt are assigned by the store.
	Save(ctx context.Context, aggregateID string, events []StoredEvent, expected Version) error

	// Events returns the ordered tail of the aggregate's stream strictly
	// after the given version. Returns ErrNoStream when the aggregate has no
	// events at all.
	Events(ctx context.Context, aggregateID string, after Version) (iter.Seq2[StoredEvent, error], error)

	// All returns every stored event across all streams in Sequence order.
	All(ctx context.Context) (iter.Seq2[StoredEvent, error], error)

	// LastVersion returns the current highest version of the aggregate's
	// stream, or 0 when the stream does not exist.
	LastVersion(ctx context.Context, aggregateID string) (Version, error)

	// OnCommit registers a callback invoked after each successful Save with
	// the events that were appended. Used for live tailing.
	OnCommit(fn func(events []StoredEvent)) Unsubscriber

	// Close releases any resources held by the store. Close is idempotent.
	Close() error
}
