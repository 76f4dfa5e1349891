package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStream is returned when reading an aggregate that has no events.
	ErrNoStream = errors.New("no aggregate event stream")
)

// ConcurrencyError is returned by Store.Save when the stream head does not
// match the caller's expected version. It is recoverable: the caller should
// reload the aggregate and retry the whole operation.
type ConcurrencyError struct {
	AggregateID string
	Expected    Version
	Actual      Version
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("version conflict: aggregate=%s, expected=%d, actual=%d", e.AggregateID, e.Expected, e.Actual)
}

// IsConcurrency reports whether err is (or wraps) a ConcurrencyError.
func IsConcurrency(err error) bool {
	ce := &ConcurrencyError{}
	return errors.As(err, &ce)
}

// UnregisteredEventError is returned when a stored payload names an event
// type the registry does not know. It indicates log or schema corruption and
// is fatal for the read that hit it.
type UnregisteredEventError struct {
	EventType string
}

func (e *UnregisteredEventError) Error() string {
	return fmt.Sprintf("event type not registered: %s", e.EventType)
}
