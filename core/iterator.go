package core

import (
	"context"
	"iter"
	"log/slog"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// Iterate tails the store's global log, yielding every stored event with a
// Sequence greater than afterSeq and then blocking until new events are
// committed. It wakes on commit notifications and on a pacing ticker, and
// stops when the context is done.
func Iterate(ctx context.Context, store Store, afterSeq uint64) iter.Seq2[StoredEvent, error] {
	logger := slogctx.FromCtx(ctx)
	pacer := time.NewTicker(5 * time.Second)
	continueSignal := make(chan struct{}, 1)
	sub := store.OnCommit(func(events []StoredEvent) {
		select {
		case continueSignal <- struct{}{}:
		default:
		}
	})
	return func(yield func(StoredEvent, error) bool) {
		defer sub.Unsubscribe()
		defer pacer.Stop()

		for {
			var foundAny bool

			select {
			case <-ctx.Done():
				return
			default:
			}

			// Drain stale wake-ups before scanning
		drain:
			for {
				select {
				case <-continueSignal:
					continue
				case <-pacer.C:
					continue
				default:
					break drain
				}
			}

			all, err := store.All(ctx)
			if err != nil {
				logger.Error("failed to read the event log", slog.Any("error", err))
				yield(StoredEvent{}, err)
				return
			}

			for e, err := range all {
				if err != nil {
					yield(StoredEvent{}, err)
					return
				}
				if e.Sequence <= afterSeq {
					continue
				}
				if !yield(e, nil) {
					return
				}
				afterSeq = e.Sequence
				foundAny = true
			}

			if foundAny {
				logger.Debug("iterate: found events, will not sleep")
				continue
			}

			logger.Debug("iterate: sleeping for new events")
			select {
			case <-ctx.Done():
				return
			case <-pacer.C:
			case <-continueSignal:
			}
		}
	}
}
