package bulb

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/noolite-core/internal/noolite"
)

// EventType classifies registry events.
type EventType string

// Event types.
const (
	EventCreated  EventType = "bulb.created"
	EventUpdated  EventType = "bulb.updated"
	EventChanged  EventType = "bulb.changed"
	EventRejected EventType = "bulb.rejected"
	EventDeleted  EventType = "bulb.deleted"
	EventCleared  EventType = "bulb.cleared"
)

// Outcomes reported by Event.Outcome.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeDeviceError = "device_error"
)

// Event describes one completed registry operation.
type Event struct {
	Type EventType
	// Action is the operation name: create, update, set_state, toggle,
	// set_brightness, set_color, command, bind, unbind, delete, delete_all.
	Action string
	// Bulb is a copy of the record after the operation. Nil for delete_all.
	Bulb *Bulb
	// Frame is the frame handed to the transmitter, if any.
	Frame *noolite.Frame
	// Err is the rejection or transmit error, if any.
	Err  error
	Time time.Time
}

// Outcome summarises the event as ok, rejected or device_error.
func (e Event) Outcome() string {
	switch {
	case errors.Is(e.Err, ErrValidationRejected):
		return OutcomeRejected
	case errors.Is(e.Err, ErrDevice):
		return OutcomeDeviceError
	default:
		return OutcomeOK
	}
}

// Listener receives registry events. HandleBulbEvent is called
// synchronously after the operation completes and must not block for long.
type Listener interface {
	HandleBulbEvent(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

// HandleBulbEvent calls f.
func (f ListenerFunc) HandleBulbEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
