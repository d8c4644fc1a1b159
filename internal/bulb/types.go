package bulb

import (
	"fmt"
	"regexp"
	"strings"
)

// Defaults applied to new bulbs.
const (
	DefaultColor      = "FFFFFF"
	DefaultBrightness = 100

	MinBrightness = 0
	MaxBrightness = 100
)

// State is the power state of a bulb.
type State string

// Power states.
const (
	StateOn  State = "on"
	StateOff State = "off"
)

// ParseState accepts exactly "on" or "off".
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateOn, StateOff:
		return State(s), nil
	default:
		return "", fmt.Errorf("%w: state %q is not on or off", ErrValidationRejected, s)
	}
}

// Flipped returns the opposite state. Anything other than on flips to on.
func (s State) Flipped() State {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// Bulb is one RF light fixture paired to a transmitter channel.
type Bulb struct {
	ID         uint64 `json:"id"`
	Channel    int    `json:"channel"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Type       string `json:"type"`
	Binded     bool   `json:"binded"`
	State      State  `json:"state"`
	Color      string `json:"color"`
	Brightness int    `json:"brightness"`
}

// Fields carries the descriptive attributes accepted by Create and Update.
// A nil field is left untouched by Update.
type Fields struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
	Type     *string `json:"type,omitempty"`
}

// apply overwrites the supplied fields on b.
func (f Fields) apply(b *Bulb) {
	if f.Name != nil {
		b.Name = *f.Name
	}
	if f.Location != nil {
		b.Location = *f.Location
	}
	if f.Type != nil {
		b.Type = *f.Type
	}
}

// Empty reports whether no field is supplied.
func (f Fields) Empty() bool {
	return f.Name == nil && f.Location == nil && f.Type == nil
}

// newBulb builds the default record for a freshly allocated channel.
func newBulb(id uint64, channel int, f Fields) *Bulb {
	b := &Bulb{
		ID:         id,
		Channel:    channel,
		State:      StateOff,
		Color:      DefaultColor,
		Brightness: DefaultBrightness,
	}
	f.apply(b)
	return b
}

var colorPattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// ValidColor reports whether s is a six digit hex color.
func ValidColor(s string) bool {
	return colorPattern.MatchString(s)
}

// ValidBrightness reports whether v is within [0,100].
func ValidBrightness(v int) bool {
	return v >= MinBrightness && v <= MaxBrightness
}

// ValidChannel reports whether ch is a transmitter channel.
func ValidChannel(ch int) bool {
	return ch >= 0 && ch < MaxChannels
}

// validate checks the record invariants.
func (b *Bulb) validate() error {
	var errs []string
	if !ValidChannel(b.Channel) {
		errs = append(errs, fmt.Sprintf("channel %d out of range", b.Channel))
	}
	if !ValidBrightness(b.Brightness) {
		errs = append(errs, fmt.Sprintf("brightness %d out of range", b.Brightness))
	}
	if !ValidColor(b.Color) {
		errs = append(errs, fmt.Sprintf("color %q is not six hex digits", b.Color))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrSerialization, strings.Join(errs, "; "))
	}
	return nil
}

// Copy returns a copy of b. Bulb has no reference fields, so a value copy
// is deep.
func (b *Bulb) Copy() *Bulb {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
