package core_test

import (
	"context"
	"iter"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/gehhilfe/shopflux/core"
)

// counter is a minimal event-sourced aggregate for exercising the base.
type counter struct {
	core.Root
	Value int
}

func (c *counter) Transition(env core.Envelope) {
	switch e := env.Payload.(type) {
	case *incremented:
		c.Value += e.By
	}
}

type incremented struct {
	CounterID string `json:"counterId"`
	By        int    `json:"by"`
}

func (e *incremented) AggregateID() string   { return e.CounterID }
func (e *incremented) AggregateType() string { return "Counter" }
func (e *incremented) EventType() string     { return "Incremented" }

func history(envs []core.Envelope) iter.Seq2[core.Envelope, error] {
	return func(yield func(core.Envelope, error) bool) {
		for _, env := range envs {
			if !yield(env, nil) {
				return
			}
		}
	}
}

func TestRaiseStampsVersionsAndAppliesImmediately(t *testing.T) {
	ctx := context.Background()
	c := &counter{}

	core.Raise(ctx, c, &incremented{CounterID: "c-1", By: 2})
	core.Raise(ctx, c, &incremented{CounterID: "c-1", By: 3})

	if c.Value != 5 {
		t.Errorf("expected value 5, got %d", c.Value)
	}
	if c.Version() != 2 {
		t.Errorf("expected version 2, got %d", c.Version())
	}
	if c.ID() != "c-1" {
		t.Errorf("expected id c-1, got %s", c.ID())
	}

	uncommitted := c.Uncommitted()
	if len(uncommitted) != 2 {
		t.Fatalf("expected 2 uncommitted events, got %d", len(uncommitted))
	}
	for i, env := range uncommitted {
		if env.Version != core.Version(i+1) {
			t.Errorf("expected version %d, got %d", i+1, env.Version)
		}
		if env.EventType != "Incremented" {
			t.Errorf("unexpected event type %s", env.EventType)
		}
		if env.EventID == uuid.Nil {
			t.Error("expected a non-zero event id")
		}
	}
}

func TestRaiseCapturesActorFromContext(t *testing.T) {
	ctx := core.WithActor(context.Background(), core.Actor{UserID: "u-1", UserName: "Ana"})
	c := &counter{}

	core.Raise(ctx, c, &incremented{CounterID: "c-1", By: 1})

	env := c.Uncommitted()[0]
	if env.Actor.UserID != "u-1" || env.Actor.UserName != "Ana" {
		t.Errorf("unexpected actor: %+v", env.Actor)
	}

	c2 := &counter{}
	core.Raise(context.Background(), c2, &incremented{CounterID: "c-2", By: 1})
	if c2.Uncommitted()[0].Actor.UserName != "anonymous" {
		t.Errorf("expected anonymous actor, got %+v", c2.Uncommitted()[0].Actor)
	}
}

func TestMarkCommittedClearsBuffer(t *testing.T) {
	ctx := context.Background()
	c := &counter{}

	core.Raise(ctx, c, &incremented{CounterID: "c-1", By: 1})
	c.MarkCommitted()

	if len(c.Uncommitted()) != 0 {
		t.Errorf("expected empty buffer, got %d events", len(c.Uncommitted()))
	}
	if c.Version() != 1 {
		t.Errorf("version must survive the commit, got %d", c.Version())
	}
}

func TestLoadFromHistoryReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	source := &counter{}
	core.Raise(ctx, source, &incremented{CounterID: "c-1", By: 2})
	core.Raise(ctx, source, &incremented{CounterID: "c-1", By: 3})
	core.Raise(ctx, source, &incremented{CounterID: "c-1", By: 5})
	envs := source.Uncommitted()

	replayed := &counter{}
	if err := core.LoadFromHistory(replayed, history(envs)); err != nil {
		t.Fatal(err)
	}

	again := &counter{}
	if err := core.LoadFromHistory(again, history(envs)); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(replayed, again) {
		t.Errorf("two full replays diverged: %+v vs %+v", replayed, again)
	}
	if replayed.Value != 10 || replayed.Version() != 3 {
		t.Errorf("unexpected replayed state: value=%d version=%d", replayed.Value, replayed.Version())
	}
	if len(replayed.Uncommitted()) != 0 {
		t.Error("replay must not buffer events")
	}
}

func TestLoadFromHistoryPrefixThenSuffix(t *testing.T) {
	ctx := context.Background()
	source := &counter{}
	for i := 1; i <= 4; i++ {
		core.Raise(ctx, source, &incremented{CounterID: "c-1", By: i})
	}
	envs := source.Uncommitted()

	whole := &counter{}
	if err := core.LoadFromHistory(whole, history(envs)); err != nil {
		t.Fatal(err)
	}

	split := &counter{}
	if err := core.LoadFromHistory(split, history(envs[:2])); err != nil {
		t.Fatal(err)
	}
	if err := core.LoadFromHistory(split, history(envs[2:])); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(whole, split) {
		t.Errorf("prefix+suffix replay diverged from whole replay: %+v vs %+v", whole, split)
	}
}
