package core

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

var now = time.Now

// Aggregate is implemented by event-sourced entities. Implementations embed
// Root and provide Transition, a pure in-memory mutation applied both when
// an event is first raised and when history is replayed. Transition must not
// raise further events.
type Aggregate interface {
	Transition(env Envelope)
	ID() string
	Version() Version
	Uncommitted() []Envelope
	MarkCommitted()
	root() *Root
}

// Root is the base of every event-sourced aggregate. It tracks the identity,
// the version of the last applied event, and the buffer of events raised
// since the last successful save. An aggregate is constructed per use case
// invocation and discarded afterwards; the store owns the durable history.
type Root struct {
	id          string
	version     Version
	uncommitted []Envelope
}

func (r *Root) root() *Root { return r }

func (r *Root) ID() string {
	return r.id
}

func (r *Root) Version() Version {
	return r.version
}

// Uncommitted returns the events raised since the last commit, oldest first.
func (r *Root) Uncommitted() []Envelope {
	return r.uncommitted
}

// MarkCommitted clears the uncommitted buffer. Call it only after the save
// has been confirmed; clearing before confirmation loses the events if the
// save then fails.
func (r *Root) MarkCommitted() {
	r.uncommitted = nil
}

// RaiseOption customizes the envelope of a raised event.
type RaiseOption func(*Envelope)

// WithMetadata attaches auxiliary context to the raised envelope.
func WithMetadata(metadata map[string]string) RaiseOption {
	return func(env *Envelope) {
		for k, v := range metadata {
			env.Metadata[k] = v
		}
	}
}

// Raise stamps the next version on the payload, applies it to the aggregate
// immediately so subsequent logic in the same operation observes the updated
// state, and appends it to the uncommitted buffer. The acting user is taken
// from the context.
func Raise(ctx context.Context, a Aggregate, payload Event, opts ...RaiseOption) {
	r := a.root()
	if r.id == "" {
		r.id = payload.AggregateID()
	}

	env := Envelope{
		EventID:       uuid.New(),
		EventType:     payload.EventType(),
		AggregateID:   payload.AggregateID(),
		AggregateType: payload.AggregateType(),
		Version:       r.version + 1,
		OccurredOn:    now(),
		Actor:         ActorFromContext(ctx),
		Metadata:      make(map[string]string),
		Payload:       payload,
	}

	for _, opt := range opts {
		opt(&env)
	}

	a.Transition(env)
	r.version = env.Version
	r.uncommitted = append(r.uncommitted, env)
}

// LoadFromHistory rebuilds the aggregate by replaying envelopes in ascending
// version order. Replayed events are not added to the uncommitted buffer.
func LoadFromHistory(a Aggregate, history iter.Seq2[Envelope, error]) error {
	r := a.root()
	for env, err := range history {
		if err != nil {
			return err
		}
		a.Transition(env)
		r.id = env.AggregateID
		r.version = env.Version
	}
	return nil
}
