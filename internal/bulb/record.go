package bulb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// schemaVersion is written into every record as "v".
//
// Version history:
//
//	0: no "v"; binded stored as 0/1, numbers sometimes as strings
//	1: no "v"; "channels" array instead of a single channel
//	2: explicit "v", typed fields
const schemaVersion = 2

// maxExactFloat is the largest magnitude at which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// storedRecord is the on-disk form of a Bulb.
type storedRecord struct {
	V          int    `json:"v"`
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

// encodeRecord serialises b at the current schema version.
func encodeRecord(b *Bulb) ([]byte, error) {
	data, err := json.Marshal(storedRecord{
		V:          schemaVersion,
		ID:         b.ID,
		Channel:    b.Channel,
		Name:       b.Name,
		Location:   b.Location,
		Type:       b.Type,
		Binded:     b.Binded,
		State:      b.State,
		Color:      b.Color,
		Brightness: b.Brightness,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding bulb %d: %w", ErrSerialization, b.ID, err)
	}
	return data, nil
}

// decodeRecord parses a stored record of any known schema version and
// normalises it to a Bulb. fallbackID is used when the record carries no id
// (the store key is authoritative for legacy rows).
//
// Normalisation happens here and only here; the rest of the package sees
// version 2 bulbs.
func decodeRecord(data []byte, fallbackID uint64) (*Bulb, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: record is null", ErrSerialization)
	}

	b := &Bulb{
		ID:         fallbackID,
		State:      StateOff,
		Color:      DefaultColor,
		Brightness: DefaultBrightness,
	}

	if v, ok, err := intField(raw["v"]); err != nil {
		return nil, fieldError("v", err)
	} else if ok && v > schemaVersion {
		return nil, fmt.Errorf("%w: schema version %d is newer than %d", ErrSerialization, v, schemaVersion)
	}

	if id, ok, err := uintField(raw["id"]); err != nil {
		return nil, fieldError("id", err)
	} else if ok {
		b.ID = id
	}

	channel, err := channelField(raw)
	if err != nil {
		return nil, err
	}
	b.Channel = channel

	for name, dst := range map[string]*string{"name": &b.Name, "location": &b.Location, "type": &b.Type} {
		s, _, err := stringField(raw[name])
		if err != nil {
			return nil, fieldError(name, err)
		}
		*dst = s
	}

	if binded, ok, err := boolField(raw["binded"]); err != nil {
		return nil, fieldError("binded", err)
	} else if ok {
		b.Binded = binded
	}

	if s, ok, err := stringField(raw["state"]); err != nil {
		return nil, fieldError("state", err)
	} else if ok && State(strings.ToLower(s)) == StateOn {
		b.State = StateOn
	}

	if s, ok, err := stringField(raw["color"]); err != nil {
		return nil, fieldError("color", err)
	} else if ok {
		b.Color = s
	}

	if v, ok, err := intField(raw["brightness"]); err != nil {
		return nil, fieldError("brightness", err)
	} else if ok {
		b.Brightness = int(v)
	}

	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// peekChannel extracts only the channel of a record, for records that fail
// full decoding but still hold a channel.
func peekChannel(data []byte) (int, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, false
	}
	ch, err := channelField(raw)
	if err != nil || !ValidChannel(ch) {
		return 0, false
	}
	return ch, true
}

// channelField reads "channel", falling back to the first entry of the
// version 1 "channels" array.
func channelField(raw map[string]json.RawMessage) (int, error) {
	if ch, ok, err := intField(raw["channel"]); err != nil {
		return 0, fieldError("channel", err)
	} else if ok {
		return int(ch), nil
	}

	if list, ok := raw["channels"]; ok && !isNull(list) {
		var channels []json.RawMessage
		if err := json.Unmarshal(list, &channels); err != nil {
			return 0, fieldError("channels", err)
		}
		if len(channels) > 0 {
			ch, ok, err := intField(channels[0])
			if err != nil {
				return 0, fieldError("channels", err)
			}
			if ok {
				return int(ch), nil
			}
		}
	}

	return 0, fmt.Errorf("%w: channel missing", ErrSerialization)
}

func fieldError(name string, err error) error {
	return fmt.Errorf("%w: field %s: %w", ErrSerialization, name, err)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// numberText returns the literal of a JSON number, or the trimmed content
// of a JSON string holding one.
func numberText(raw json.RawMessage) (string, bool, error) {
	if isNull(raw) {
		return "", false, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false, fmt.Errorf("not a number: %s", raw)
	}
	return n.String(), true, nil
}

// intField accepts a JSON integer or a string holding one, over the full
// int64 range. Range limits for individual fields belong to validate.
func intField(raw json.RawMessage) (int64, bool, error) {
	text, ok, err := numberText(raw)
	if err != nil || !ok {
		return 0, ok, err
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, true, nil
	}
	// Integral floats such as 40.0 or 1e2.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
		return 0, false, fmt.Errorf("not an integer: %s", raw)
	}
	return int64(f), true, nil
}

// uintField is intField for ids, which span the uint64 range.
func uintField(raw json.RawMessage) (uint64, bool, error) {
	text, ok, err := numberText(raw)
	if err != nil || !ok {
		return 0, ok, err
	}
	if strings.HasPrefix(text, "-") {
		return 0, false, fmt.Errorf("negative id %s", text)
	}
	if v, err := strconv.ParseUint(text, 10, 64); err == nil {
		return v, true, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || f > maxExactFloat {
		return 0, false, fmt.Errorf("not an integer: %s", raw)
	}
	return uint64(f), true, nil
}

// boolField accepts true/false, 0/1 and their string forms.
func boolField(raw json.RawMessage) (bool, bool, error) {
	if isNull(raw) {
		return false, false, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return false, false, fmt.Errorf("not a boolean: %q", s)
		}
		return v, true, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && (n == 0 || n == 1) {
		return n == 1, true, nil
	}
	return false, false, fmt.Errorf("not a boolean: %s", raw)
}

func stringField(raw json.RawMessage) (string, bool, error) {
	if isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("not a string: %s", raw)
	}
	return s, true, nil
}
