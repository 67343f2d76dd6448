package environment

import (
	"context"
	"time"
)

// EventKind distinguishes episode events.
type EventKind string

const (
	EventReset EventKind = "reset"
	EventStep  EventKind = "step"
)

// Event is emitted to observers after every successful Reset and Step.
type Event struct {
	Kind     EventKind
	Env      string
	Instance string
	// Step counts steps since the last reset; it is zero for reset events.
	Step   int
	Reward float64
	Done   bool
	Info   string
	Time   time.Time
}

// Observer receives session events synchronously. Errors are logged and do not
// fail the operation that produced the event.
type Observer func(ctx context.Context, ev Event) error
