package core

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Registry maps event type names to payload factories so stored events can
// be reconstituted into their concrete shapes. It is populated once during
// process initialization and passed explicitly to whoever hydrates events;
// there is no process-wide global registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Event
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]func() Event),
	}
}

// Register adds payload factories keyed by the EventType of the value each
// factory produces. Factories must return a pointer to a fresh zero value so
// deserialization can populate it. Registering the same type twice panics,
// as does a factory returning nil; both are programming errors caught at
// startup.
func (r *Registry) Register(factories ...func() Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fn := range factories {
		ev := fn()
		if ev == nil {
			panic("event registry: factory returned nil")
		}
		name := ev.EventType()
		if _, exists := r.factories[name]; exists {
			panic(fmt.Sprintf("event registry: duplicate registration for %s", name))
		}
		r.factories[name] = fn
	}
}

// New returns a fresh instance of the named event type.
func (r *Registry) New(name string) (Event, error) {
	r.mu.RLock()
	fn, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnregisteredEventError{EventType: name}
	}
	return fn(), nil
}

// Envelope reconstitutes a stored event into a full envelope, deserializing
// the payload and metadata. A payload that cannot be decoded into its
// declared shape is surfaced as an error, never skipped: it indicates log or
// schema corruption.
func (r *Registry) Envelope(stored StoredEvent) (Envelope, error) {
	payload, err := r.New(stored.EventType)
	if err != nil {
		return Envelope{}, err
	}
	if err := json.Unmarshal(stored.Data, payload); err != nil {
		return Envelope{}, fmt.Errorf("decode payload of %s event %s: %w", stored.EventType, stored.EventID, err)
	}

	var metadata map[string]string
	if len(stored.Metadata) > 0 {
		if err := json.Unmarshal(stored.Metadata, &metadata); err != nil {
			return Envelope{}, fmt.Errorf("decode metadata of event %s: %w", stored.EventID, err)
		}
	}

	return Envelope{
		EventID:       stored.EventID,
		EventType:     stored.EventType,
		AggregateID:   stored.AggregateID,
		AggregateType: stored.AggregateType,
		Version:       stored.Version,
		OccurredOn:    stored.OccurredOn,
		Actor:         stored.Actor,
		Metadata:      metadata,
		Payload:       payload,
	}, nil
}
