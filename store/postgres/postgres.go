package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/gehhilfe/shopflux/core"
)

// Store is a postgres-backed audit log for setups that outgrow the
// in-memory reference store. The sequence column provides the store-global
// order; the unique (aggregate_id, version) index backs the optimistic
// concurrency check against racing writers.
type Store struct {
	db *sql.DB

	cbMu        sync.Mutex
	onCommitCbs map[int]func([]core.StoredEvent)
	nextCbID    int
}

func NewStore(uri string) (*Store, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	s := &Store{
		db:          db,
		onCommitCbs: make(map[int]func([]core.StoredEvent)),
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			sequence BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			version BIGINT NOT NULL,
			occurred_on TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			actor_user_id TEXT NOT NULL DEFAULT '',
			actor_user_name TEXT NOT NULL DEFAULT '',
			actor_remote_addr TEXT NOT NULL DEFAULT '',
			actor_user_agent TEXT NOT NULL DEFAULT '',
			data JSONB NOT NULL,
			metadata JSONB NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit_events table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS aggregate_id_version_idx ON audit_events (aggregate_id, version);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create index on aggregate_id and version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit schema setup: %w", err)
	}

	return s, nil
}

func coalesceJSON(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}

func (s *Store) Save(ctx context.Context, aggregateID string, events []core.StoredEvent, expected core.Version) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current core.Version
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM audit_events WHERE aggregate_id = $1;
	`, aggregateID).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to get current stream version: %w", err)
	}

	if current != expected {
		return &core.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expected,
			Actual:      current,
		}
	}

	committed := make([]core.StoredEvent, 0, len(events))
	createdAt := time.Now()

	for i, event := range events {
		event.Version = expected + core.Version(i) + 1
		event.CreatedAt = createdAt

		err := tx.QueryRowContext(ctx, `
			INSERT INTO audit_events (event_id, event_type, aggregate_id, aggregate_type, version, occurred_on, created_at,
				actor_user_id, actor_user_name, actor_remote_addr, actor_user_agent, data, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING sequence;
		`, event.EventID, event.EventType, aggregateID, event.AggregateType, event.Version,
			event.OccurredOn, event.CreatedAt,
			event.Actor.UserID, event.Actor.UserName, event.Actor.RemoteAddr, event.Actor.UserAgent,
			coalesceJSON(event.Data), coalesceJSON(event.Metadata),
		).Scan(&event.Sequence)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", event.EventType, asConcurrency(err, aggregateID, expected))
		}

		committed = append(committed, event)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", asConcurrency(err, aggregateID, expected))
	}

	s.committed(committed)
	return nil
}

// asConcurrency converts a unique-violation on (aggregate_id, version) into
// the concurrency error the caller is expected to handle; two writers that
// both pass the version check race into the index.
func asConcurrency(err error, aggregateID string, expected core.Version) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &core.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expected,
			Actual:      expected + 1,
		}
	}
	return err
}

func selectColumns(sb *sqlbuilder.SelectBuilder) {
	sb.Select("sequence", "event_id", "event_type", "aggregate_id", "aggregate_type", "version",
		"occurred_on", "created_at", "actor_user_id", "actor_user_name", "actor_remote_addr", "actor_user_agent",
		"data", "metadata")
	sb.From("audit_events")
}

func (s *Store) query(ctx context.Context, sb *sqlbuilder.SelectBuilder) (iter.Seq2[core.StoredEvent, error], error) {
	query, args := sb.Build()
	res, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return func(yield func(core.StoredEvent, error) bool) {
		defer res.Close()

		for res.Next() {
			var e core.StoredEvent
			err := res.Scan(&e.Sequence, &e.EventID, &e.EventType, &e.AggregateID, &e.AggregateType, &e.Version,
				&e.OccurredOn, &e.CreatedAt, &e.Actor.UserID, &e.Actor.UserName, &e.Actor.RemoteAddr, &e.Actor.UserAgent,
				&e.Data, &e.Metadata)
			if !yield(e, err) {
				return
			}
			if err != nil {
				return
			}
		}
		if err := res.Err(); err != nil {
			yield(core.StoredEvent{}, err)
		}
	}, nil
}

func (s *Store) Events(ctx context.Context, aggregateID string, after core.Version) (iter.Seq2[core.StoredEvent, error], error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM audit_events WHERE aggregate_id = $1);
	`, aggregateID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, core.ErrNoStream
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	selectColumns(sb)
	sb.Where(sb.Equal("aggregate_id", aggregateID))
	sb.Where(sb.GreaterThan("version", after))
	sb.OrderBy("version").Asc()

	return s.query(ctx, sb)
}

func (s *Store) All(ctx context.Context) (iter.Seq2[core.StoredEvent, error], error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	selectColumns(sb)
	sb.OrderBy("sequence").Asc()

	return s.query(ctx, sb)
}

func (s *Store) LastVersion(ctx context.Context, aggregateID string) (core.Version, error) {
	var version core.Version
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM audit_events WHERE aggregate_id = $1;
	`, aggregateID).Scan(&version)
	return version, err
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
	return s.db.Close()
}
