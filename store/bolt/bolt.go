package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/gehhilfe/shopflux/core"
)

const logBucketName = "log"

// Store is a bbolt-backed audit log for single-node durable setups. Each
// aggregate stream lives in its own bucket keyed by version; the log bucket
// holds every event keyed by its global sequence.
type Store struct {
	db *bbolt.DB

	cbMu        sync.Mutex
	onCommitCbs map[int]func([]core.StoredEvent)
	nextCbID    int
}

func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(logBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create log bucket: %w", err)
	}

	return &Store{
		db:          db,
		onCommitCbs: make(map[int]func([]core.StoredEvent)),
	}, nil
}

func streamBucket(aggregateID string) []byte {
	return []byte("stream_" + aggregateID)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (s *Store) Save(ctx context.Context, aggregateID string, events []core.StoredEvent, expected core.Version) error {
	if len(events) == 0 {
		return nil
	}

	committed := make([]core.StoredEvent, 0, len(events))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		stream, err := tx.CreateBucketIfNotExists(streamBucket(aggregateID))
		if err != nil {
			return errors.New("could not create stream bucket")
		}

		var current core.Version
		if k, _ := stream.Cursor().Last(); k != nil {
			current = core.Version(binary.BigEndian.Uint64(k))
		}
		if current != expected {
			return &core.ConcurrencyError{
				AggregateID: aggregateID,
				Expected:    expected,
				Actual:      current,
			}
		}

		log := tx.Bucket([]byte(logBucketName))
		createdAt := time.Now()

		for i, event := range events {
			sequence, err := log.NextSequence()
			if err != nil {
				return errors.New("could not get next sequence for log bucket")
			}

			event.Version = expected + core.Version(i) + 1
			event.Sequence = sequence
			event.CreatedAt = createdAt

			data, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("could not serialize event: %w", err)
			}
			if err := stream.Put(itob(uint64(event.Version)), data); err != nil {
				return err
			}
			if err := log.Put(itob(sequence), data); err != nil {
				return err
			}

			committed = append(committed, event)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.committed(committed)
	return nil
}

func (s *Store) Events(ctx context.Context, aggregateID string, after core.Version) (iter.Seq2[core.StoredEvent, error], error) {
	var raw [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		stream := tx.Bucket(streamBucket(aggregateID))
		if stream == nil {
			return core.ErrNoStream
		}
		c := stream.Cursor()
		for k, v := c.Seek(itob(uint64(after) + 1)); k != nil; k, v = c.Next() {
			buf := make([]byte, len(v))
			copy(buf, v)
			raw = append(raw, buf)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return decodeAll(raw), nil
}

func (s *Store) All(ctx context.Context) (iter.Seq2[core.StoredEvent, error], error) {
	var raw [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(logBucketName)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			buf := make([]byte, len(v))
			copy(buf, v)
			raw = append(raw, buf)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return decodeAll(raw), nil
}

func decodeAll(raw [][]byte) iter.Seq2[core.StoredEvent, error] {
	return func(yield func(core.StoredEvent, error) bool) {
		for _, buf := range raw {
			var event core.StoredEvent
			if err := json.Unmarshal(buf, &event); err != nil {
				yield(core.StoredEvent{}, fmt.Errorf("could not deserialize stored event: %w", err))
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (s *Store) LastVersion(ctx context.Context, aggregateID string) (core.Version, error) {
	var last core.Version
	err := s.db.View(func(tx *bbolt.Tx) error {
		stream := tx.Bucket(streamBucket(aggregateID))
		if stream == nil {
			return nil
		}
		if k, _ := stream.Cursor().Last(); k != nil {
			last = core.Version(binary.BigEndian.Uint64(k))
		}
		return nil
	})
	return last, err
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
