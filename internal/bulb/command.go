package bulb

import (
	"fmt"

	"github.com/nerrad567/noolite-core/internal/noolite"
)

// Command is a named effect command for color-capable receivers.
type Command int

// Effect commands.
const (
	CommandRoll Command = iota + 1
	CommandStop
	CommandSwitchColor
	CommandSwitchMode
	CommandSwitchSpeed
)

var commandNames = map[string]Command{
	"roll":         CommandRoll,
	"stop":         CommandStop,
	"switch_color": CommandSwitchColor,
	"switch_mode":  CommandSwitchMode,
	"switch_speed": CommandSwitchSpeed,
}

// ParseCommand maps a wire name to a Command. Unknown names are rejected
// with ErrValidationRejected.
func ParseCommand(name string) (Command, error) {
	if c, ok := commandNames[name]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: unknown command %q", ErrValidationRejected, name)
}

// String returns the wire name.
func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Frame encodes the command for channel.
func (c Command) Frame(channel int) (noolite.Frame, bool) {
	switch c {
	case CommandRoll:
		return noolite.Encode(noolite.ActionStartColorPlay, channel, noolite.FormatControl), true
	case CommandStop:
		return noolite.Encode(noolite.ActionStopColorPlay, channel, noolite.FormatNone), true
	case CommandSwitchColor:
		return noolite.Encode(noolite.ActionSwitchToNextColor, channel, noolite.FormatControl), true
	case CommandSwitchMode:
		return noolite.Encode(noolite.ActionChangeSwitchMode, channel, noolite.FormatControl), true
	case CommandSwitchSpeed:
		return noolite.Encode(noolite.ActionChangeSwitchSpeed, channel, noolite.FormatControl), true
	default:
		return noolite.Frame{}, false
	}
}
