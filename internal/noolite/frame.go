package noolite

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// FrameSize is the length of every command frame.
const FrameSize = 8

// frameHeader is the fixed first byte of every frame.
const frameHeader = 0x30

// Frame byte offsets.
const (
	offsetAction  = 1
	offsetFormat  = 2
	offsetChannel = 4
	offsetPayload = 5
)

// Frame is one command as sent to the transceiver:
//
//	[0x30, action, format, 0x00, channel, p0, p1, p2]
type Frame [FrameSize]byte

// Encode builds the frame for action on channel.
//
// An action code above 19 leaves the action byte at zero. The format byte is
// always written. Payload bytes are only written for ActionSet: one level byte
// for FormatBrightness, three bytes for FormatRGB. Missing payload bytes stay
// zero and extra ones are ignored.
func Encode(action Action, channel int, format Format, payload ...byte) Frame {
	f := Frame{frameHeader}

	if action <= maxAction {
		f[offsetAction] = byte(action)
	}
	f[offsetFormat] = byte(format)
	f[offsetChannel] = byte(channel)

	if action == ActionSet {
		n := 0
		switch format {
		case FormatBrightness:
			n = 1
		case FormatRGB:
			n = 3
		}
		copy(f[offsetPayload:offsetPayload+n], payload)
	}

	return f
}

// Level converts a 0-100 brightness percentage into the receiver's native
// brightness unit: round(brightness*1.23 + 34).
func Level(brightness int) byte {
	return byte(math.Round(float64(brightness)*1.23 + 34))
}

// ParseColor splits a hex color into two-digit byte pairs. It succeeds only
// when the string yields exactly three valid pairs.
func ParseColor(color string) ([3]byte, bool) {
	var rgb [3]byte
	if len(color) != 2*len(rgb) {
		return rgb, false
	}
	for i := range rgb {
		v, err := strconv.ParseUint(color[2*i:2*i+2], 16, 8)
		if err != nil {
			return rgb, false
		}
		rgb[i] = byte(v)
	}
	return rgb, true
}

// SwitchOn returns the On (or SmoothOn) frame for channel.
func SwitchOn(channel int, smooth bool) Frame {
	if smooth {
		return Encode(ActionSmoothOn, channel, FormatNone)
	}
	return Encode(ActionOn, channel, FormatNone)
}

// SwitchOff returns the Off (or SmoothOff) frame for channel.
func SwitchOff(channel int, smooth bool) Frame {
	if smooth {
		return Encode(ActionSmoothOff, channel, FormatNone)
	}
	return Encode(ActionOff, channel, FormatNone)
}

// Toggle returns the Toggle (or SmoothToggle) frame for channel.
func Toggle(channel int, smooth bool) Frame {
	if smooth {
		return Encode(ActionSmoothToggle, channel, FormatNone)
	}
	return Encode(ActionToggle, channel, FormatNone)
}

// SetBrightness returns the Set/Brightness frame for a 0-100 percentage.
func SetBrightness(channel, brightness int) Frame {
	return Encode(ActionSet, channel, FormatBrightness, Level(brightness))
}

// SetColor returns the Set/RGB frame for a six digit hex color. The second
// result is false, and no frame is produced, when the color does not parse.
func SetColor(channel int, color string) (Frame, bool) {
	rgb, ok := ParseColor(color)
	if !ok {
		return Frame{}, false
	}
	return Encode(ActionSet, channel, FormatRGB, rgb[:]...), true
}

// Action returns the action byte.
func (f Frame) Action() Action { return Action(f[offsetAction]) }

// Format returns the format byte.
func (f Frame) Format() Format { return Format(f[offsetFormat]) }

// Channel returns the channel byte.
func (f Frame) Channel() int { return int(f[offsetChannel]) }

// Payload returns the three payload bytes.
func (f Frame) Payload() [3]byte {
	return [3]byte{f[offsetPayload], f[offsetPayload+1], f[offsetPayload+2]}
}

// String renders the frame as lowercase hex, e.g. "3002000005000000".
func (f Frame) String() string {
	return hex.EncodeToString(f[:])
}

// MarshalText implements encoding.TextMarshaler so frames appear as hex in
// JSON event payloads.
func (f Frame) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses the hex form produced by MarshalText.
func (f *Frame) UnmarshalText(text []byte) error {
	parsed, err := ParseFrame(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFrame decodes a 16 digit hex string into a Frame.
func ParseFrame(s string) (Frame, error) {
	var f Frame
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("noolite: decoding frame: %w", err)
	}
	if len(b) != FrameSize {
		return f, fmt.Errorf("noolite: frame is %d bytes, want %d", len(b), FrameSize)
	}
	if b[0] != frameHeader {
		return f, fmt.Errorf("noolite: bad frame header %#x", b[0])
	}
	copy(f[:], b)
	return f, nil
}
