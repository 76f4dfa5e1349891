package core

import (
	"time"

	"github.com/google/uuid"
)

// Version is a 1-based, strictly increasing position within a single
// aggregate's event stream.
type Version uint64

// Event is a domain occurrence raised by an aggregate. Concrete payloads are
// plain structs that carry their own identifying fields.
type Event interface {
	AggregateID() string
	AggregateType() string
	EventType() string
}

// Envelope wraps a raised domain event with the context assigned at raise
// time. Envelopes are immutable once created.
type Envelope struct {
	EventID       uuid.UUID
	EventType     string
	AggregateID   string
	AggregateType string
	Version       Version
	OccurredOn    time.Time
	Actor         Actor
	Metadata      map[string]string
	Payload       Event
}

// StoredEvent is the persisted audit form of an envelope. Data and Metadata
// hold the serialized payload and metadata bag. CreatedAt is assigned by the
// store and is distinct from OccurredOn. Sequence is a store-global monotonic
// position spanning all streams, used for stable full-log ordering and live
// tailing.
type StoredEvent struct {
	EventID       uuid.UUID `json:"eventId"`
	EventType     string    `json:"eventType"`
	AggregateID   string    `json:"aggregateId"`
	AggregateType string    `json:"aggregateType"`
	Version       Version   `json:"version"`
	Sequence      uint64    `json:"sequence"`
	OccurredOn    time.Time `json:"occurredOn"`
	CreatedAt     time.Time `json:"createdAt"`
	Actor         Actor     `json:"actor"`
	Data          []byte    `json:"data"`
	Metadata      []byte    `json:"metadata"`
}
