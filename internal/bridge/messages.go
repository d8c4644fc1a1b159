package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/noolite-core/internal/bulb"
)

// CommandMessage is received on <prefix>/command/{id}.
type CommandMessage struct {
	// ID correlates the acknowledgment. Generated when empty.
	ID string `json:"id,omitempty"`

	// Command is on, off, state, toggle, brightness, color, bind, unbind
	// or one of the effect commands (roll, stop, switch_color, ...).
	Command string `json:"command"`

	// Value carries the argument of state, brightness and color.
	Value json.RawMessage `json:"value,omitempty"`

	// Smooth selects the smooth variant of on, off, state and toggle.
	Smooth bool `json:"smooth,omitempty"`
}

// stringValue decodes Value as a string. Numbers are accepted as their
// decimal text.
func (m CommandMessage) stringValue() (string, error) {
	if len(m.Value) == 0 {
		return "", fmt.Errorf("%w: %s requires a value", bulb.ErrValidationRejected, m.Command)
	}
	var s string
	if err := json.Unmarshal(m.Value, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(m.Value, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: %s value %s", bulb.ErrValidationRejected, m.Command, m.Value)
}

// intValue decodes Value as an integer, from a JSON number or a numeric
// string.
func (m CommandMessage) intValue() (int, error) {
	s, err := m.stringValue()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s value %q is not an integer", bulb.ErrValidationRejected, m.Command, s)
	}
	return n, nil
}

// AckStatus is the outcome reported for a command.
type AckStatus string

// Acknowledgment statuses.
const (
	AckAccepted AckStatus = "accepted"
	AckRejected AckStatus = "rejected"
	AckNotFound AckStatus = "not_found"
	AckFailed   AckStatus = "failed"
)

// ackStatusFor maps a registry error to an acknowledgment status.
func ackStatusFor(err error) AckStatus {
	switch {
	case err == nil:
		return AckAccepted
	case errors.Is(err, bulb.ErrValidationRejected):
		return AckRejected
	case errors.Is(err, bulb.ErrNotFound):
		return AckNotFound
	default:
		return AckFailed
	}
}

// AckMessage is published on <prefix>/ack/{id} for every command.
type AckMessage struct {
	CommandID string     `json:"command_id"`
	BulbID    uint64     `json:"bulb_id"`
	Command   string     `json:"command"`
	Status    AckStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`
	Bulb      *bulb.Bulb `json:"bulb,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// StateMessage is the retained payload on <prefix>/state/{id}.
type StateMessage struct {
	bulb.Bulb
	UpdatedAt time.Time `json:"updated_at"`
}

// EventMessage is published on <prefix>/event/{type}.
type EventMessage struct {
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	BulbID    uint64    `json:"bulb_id,omitempty"`
	Channel   *int      `json:"channel,omitempty"`
	Frame     string    `json:"frame,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
