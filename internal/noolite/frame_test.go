package noolite

import (
	"encoding/json"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		channel int
		format  Format
		payload []byte
		want    Frame
	}{
		{
			name:    "on",
			action:  ActionOn,
			channel: 5,
			want:    Frame{0x30, 2, 0, 0, 5, 0, 0, 0},
		},
		{
			name:    "set brightness level 96",
			action:  ActionSet,
			channel: 5,
			format:  FormatBrightness,
			payload: []byte{96},
			want:    Frame{0x30, 6, 1, 0, 5, 96, 0, 0},
		},
		{
			name:    "set rgb",
			action:  ActionSet,
			channel: 5,
			format:  FormatRGB,
			payload: []byte{0x1A, 0x2B, 0x3C},
			want:    Frame{0x30, 6, 3, 0, 5, 0x1A, 0x2B, 0x3C},
		},
		{
			name:    "brightness writes one byte only",
			action:  ActionSet,
			channel: 1,
			format:  FormatBrightness,
			payload: []byte{40, 41, 42},
			want:    Frame{0x30, 6, 1, 0, 1, 40, 0, 0},
		},
		{
			name:    "short rgb payload leaves zeros",
			action:  ActionSet,
			channel: 2,
			format:  FormatRGB,
			payload: []byte{0xFF},
			want:    Frame{0x30, 6, 3, 0, 2, 0xFF, 0, 0},
		},
		{
			name:    "format written without payload for non-set action",
			action:  ActionStartColorPlay,
			channel: 7,
			format:  FormatControl,
			payload: []byte{1, 2, 3},
			want:    Frame{0x30, 16, 4, 0, 7, 0, 0, 0},
		},
		{
			name:    "set with control format has no payload",
			action:  ActionSet,
			channel: 3,
			format:  FormatControl,
			payload: []byte{9, 9, 9},
			want:    Frame{0x30, 6, 4, 0, 3, 0, 0, 0},
		},
		{
			name:    "action above 19 leaves action byte zero",
			action:  Action(20),
			channel: 4,
			want:    Frame{0x30, 0, 0, 0, 4, 0, 0, 0},
		},
		{
			name:    "unnamed code within range is kept",
			action:  Action(12),
			channel: 4,
			want:    Frame{0x30, 12, 0, 0, 4, 0, 0, 0},
		},
		{
			name:    "highest channel",
			action:  ActionBind,
			channel: 31,
			want:    Frame{0x30, 15, 0, 0, 31, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.action, tt.channel, tt.format, tt.payload...)
			if got != tt.want {
				t.Errorf("Encode() = % x, want % x", got[:], tt.want[:])
			}
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		brightness int
		want       byte
	}{
		{0, 34},
		{1, 35},
		{50, 96},
		{99, 156},
		{100, 157},
	}

	for _, tt := range tests {
		if got := Level(tt.brightness); got != tt.want {
			t.Errorf("Level(%d) = %d, want %d", tt.brightness, got, tt.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in     string
		want   [3]byte
		wantOK bool
	}{
		{in: "1A2B3C", want: [3]byte{0x1A, 0x2B, 0x3C}, wantOK: true},
		{in: "ffffff", want: [3]byte{0xFF, 0xFF, 0xFF}, wantOK: true},
		{in: "000000", want: [3]byte{}, wantOK: true},
		{in: "1A2B"},
		{in: "1A2B3C4D"},
		{in: ""},
		{in: "GG0000"},
		{in: "0x1234"},
		{in: "+12345"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseColor(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseColor(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseColor(%q) = % x, want % x", tt.in, got, tt.want)
			}
		})
	}
}

func TestSmoothVariants(t *testing.T) {
	tests := []struct {
		name string
		got  Frame
		want Action
	}{
		{"on", SwitchOn(2, false), ActionOn},
		{"smooth on", SwitchOn(2, true), ActionSmoothOn},
		{"off", SwitchOff(2, false), ActionOff},
		{"smooth off", SwitchOff(2, true), ActionSmoothOff},
		{"toggle", Toggle(2, false), ActionToggle},
		{"smooth toggle", Toggle(2, true), ActionSmoothToggle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.Action() != tt.want {
				t.Errorf("action = %v, want %v", tt.got.Action(), tt.want)
			}
			if tt.got.Channel() != 2 || tt.got.Format() != FormatNone {
				t.Errorf("frame = %v, want channel 2 with no format", tt.got)
			}
		})
	}
}

func TestSetBrightnessAndColor(t *testing.T) {
	if got, want := SetBrightness(5, 50), (Frame{0x30, 6, 1, 0, 5, 96, 0, 0}); got != want {
		t.Errorf("SetBrightness(5, 50) = % x, want % x", got[:], want[:])
	}

	f, ok := SetColor(5, "1A2B3C")
	if !ok {
		t.Fatal("SetColor(5, 1A2B3C) not ok")
	}
	if f.Payload() != [3]byte{0x1A, 0x2B, 0x3C} || f.Format() != FormatRGB {
		t.Errorf("SetColor frame = %v", f)
	}

	if _, ok := SetColor(5, "1A2B"); ok {
		t.Error("SetColor(5, 1A2B) produced a frame")
	}
}

func TestFrameText(t *testing.T) {
	f := SwitchOn(5, false)
	if f.String() != "3002000005000000" {
		t.Errorf("String() = %q", f.String())
	}

	data, err := json.Marshal(map[string]Frame{"frame": f})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"frame":"3002000005000000"}` {
		t.Errorf("JSON = %s", data)
	}

	var back map[string]Frame
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back["frame"] != f {
		t.Errorf("round trip = %v, want %v", back["frame"], f)
	}
}

func TestParseFrame_Errors(t *testing.T) {
	for _, in := range []string{"zz", "3002", "310200000500000000", "3102000005000000"} {
		if _, err := ParseFrame(in); err == nil {
			t.Errorf("ParseFrame(%q) expected error", in)
		}
	}
}

func TestActionString(t *testing.T) {
	if ActionSwitchToNextColor.String() != "switch_to_next_color" {
		t.Errorf("String() = %q", ActionSwitchToNextColor.String())
	}
	if Action(13).String() != "action(13)" || Action(13).Known() {
		t.Errorf("unnamed action = %q known=%v", Action(13).String(), Action(13).Known())
	}
	if FormatControl.String() != "control" || Format(9).String() != "format(9)" {
		t.Error("unexpected format names")
	}
}
