package noolite

import "fmt"

// Action is the command code in byte 1 of a frame.
type Action uint8

// Action codes understood by nooLite receivers.
const (
	ActionOff               Action = 0
	ActionSmoothOff         Action = 1
	ActionOn                Action = 2
	ActionSmoothOn          Action = 3
	ActionToggle            Action = 4
	ActionSmoothToggle      Action = 5
	ActionSet               Action = 6
	ActionRunScenario       Action = 7
	ActionSaveScenario      Action = 8
	ActionUnbind            Action = 9
	ActionStopColorPlay     Action = 10
	ActionBind              Action = 15
	ActionStartColorPlay    Action = 16
	ActionSwitchToNextColor Action = 17
	ActionChangeSwitchMode  Action = 18
	ActionChangeSwitchSpeed Action = 19

	// maxAction is the highest code the encoder will place in a frame.
	maxAction = 19
)

var actionNames = map[Action]string{
	ActionOff:               "off",
	ActionSmoothOff:         "smooth_off",
	ActionOn:                "on",
	ActionSmoothOn:          "smooth_on",
	ActionToggle:            "toggle",
	ActionSmoothToggle:      "smooth_toggle",
	ActionSet:               "set",
	ActionRunScenario:       "run_scenario",
	ActionSaveScenario:      "save_scenario",
	ActionUnbind:            "unbind",
	ActionStopColorPlay:     "stop_color_play",
	ActionBind:              "bind",
	ActionStartColorPlay:    "start_color_play",
	ActionSwitchToNextColor: "switch_to_next_color",
	ActionChangeSwitchMode:  "change_switch_mode",
	ActionChangeSwitchSpeed: "change_switch_speed",
}

// String returns the snake_case name of a known action, or "action(N)".
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// Known reports whether a is one of the named action codes.
func (a Action) Known() bool {
	_, ok := actionNames[a]
	return ok
}

// Format is the payload format code in byte 2 of a frame.
type Format uint8

// Payload formats.
const (
	FormatNone       Format = 0
	FormatBrightness Format = 1
	FormatRGB        Format = 3
	// FormatControl marks effect commands that carry no payload.
	FormatControl Format = 4
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatNone:
		return "none"
	case FormatBrightness:
		return "brightness"
	case FormatRGB:
		return "rgb"
	case FormatControl:
		return "control"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}
