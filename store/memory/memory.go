package memory

import (
	"context"
	"iter"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gehhilfe/shopflux/core"
)

// Store is the reference in-memory audit log. State lives for the process
// lifetime only; durability beyond that is explicitly not provided. It is
// initialized once at startup and never torn down.
type Store struct {
	tracer trace.Tracer

	mu       sync.RWMutex
	streams  map[string][]core.StoredEvent
	log      []core.StoredEvent
	sequence uint64

	cbMu        sync.Mutex
	onCommitCbs map[int]func([]core.StoredEvent)
	nextCbID    int
}

func NewStore() *Store {
	return &Store{
		tracer:      otel.Tracer("shopflux/store/memory"),
		streams:     make(map[string][]core.StoredEvent),
		onCommitCbs: make(map[int]func([]core.StoredEvent)),
	}
}

func (s *Store) Save(ctx context.Context, aggregateID string, events []core.StoredEvent, expected core.Version) error {
	_, span := s.tracer.Start(ctx, "store.save",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()

	stream := s.streams[aggregateID]
	current := core.Version(len(stream))
	if current != expected {
		s.mu.Unlock()
		err := &core.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expected,
			Actual:      current,
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	committed := make([]core.StoredEvent, len(events))
	createdAt := time.Now()
	for i, event := range events {
		s.sequence++
		event.Version = expected + core.Version(i) + 1
		event.Sequence = s.sequence
		event.CreatedAt = createdAt
		committed[i] = event

		s.streams[aggregateID] = append(s.streams[aggregateID], event)
		s.log = append(s.log, event)
	}
	s.mu.Unlock()

	s.committed(committed)
	return nil
}

func (s *Store) Events(ctx context.Context, aggregateID string, after core.Version) (iter.Seq2[core.StoredEvent, error], error) {
	s.mu.RLock()
	stream, ok := s.streams[aggregateID]
	tail := make([]core.StoredEvent, 0, len(stream))
	for _, event := range stream {
		if event.Version > after {
			tail = append(tail, event)
		}
	}
	s.mu.RUnlock()

	if !ok {
		return nil, core.ErrNoStream
	}

	return func(yield func(core.StoredEvent, error) bool) {
		for _, event := range tail {
			if !yield(event, nil) {
				return
			}
		}
	}, nil
}

func (s *Store) All(ctx context.Context) (iter.Seq2[core.StoredEvent, error], error) {
	s.mu.RLock()
	snapshot := make([]core.StoredEvent, len(s.log))
	copy(snapshot, s.log)
	s.mu.RUnlock()

	return func(yield func(core.StoredEvent, error) bool) {
		for _, event := range snapshot {
			if !yield(event, nil) {
				return
			}
		}
	}, nil
}

func (s *Store) LastVersion(ctx context.Context, aggregateID string) (core.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Version(len(s.streams[aggregateID])), nil
}

func (s *Store) OnCommit(fn func(events []core.StoredEvent)) core.Unsubscriber {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	id := s.nextCbID
	s.nextCbID++
	s.onCommitCbs[id] = fn

	return core.UnsubscribeFunc(func() error {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		delete(s.onCommitCbs, id)
		return nil
	})
}

func (s *Store) committed(events []core.StoredEvent) {
	s.cbMu.Lock()
	cbs := make([]func([]core.StoredEvent), 0, len(s.onCommitCbs))
	for _, cb := range s.onCommitCbs {
		cbs = append(cbs, cb)
	}
	s.cbMu.Unlock()

	for _, cb := range cbs {
		cb(events)
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]core.StoredEvent)
	s.log = nil
	return nil
}
