package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gehhilfe/shopflux/core"
)

// Bridge mirrors every dispatched domain event into the audit store. It is
// registered with the broadest subscription (all event types), so new event
// types get an audit trail without any bridge changes.
//
// The bridge writes with the version the raising aggregate already stamped
// on the envelope, so it never competes for the optimistic-concurrency slot;
// it is a pure side-effect consumer.
type Bridge struct {
	store core.Store
}

func NewBridge(store core.Store) *Bridge {
	return &Bridge{store: store}
}

func (b *Bridge) Handle(ctx context.Context, env core.Envelope) error {
	data, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("serialize %s payload: %w", env.EventType, err)
	}

	metadata, err := json.Marshal(env.Metadata)
	if err != nil {
		return fmt.Errorf("serialize %s metadata: %w", env.EventType, err)
	}

	stored := core.StoredEvent{
		EventID:       env.EventID,
		EventType:     env.EventType,
		AggregateID:   env.AggregateID,
		AggregateType: env.AggregateType,
		Version:       env.Version,
		OccurredOn:    env.OccurredOn,
		Actor:         env.Actor,
		Data:          data,
		Metadata:      metadata,
	}

	if err := b.store.Save(ctx, env.AggregateID, []core.StoredEvent{stored}, env.Version-1); err != nil {
		return fmt.Errorf("append audit record for %s v%d of %s: %w", env.EventType, env.Version, env.AggregateID, err)
	}
	return nil
}
