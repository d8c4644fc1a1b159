package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is the root of every topic when mqtt.topic_prefix is unset.
const DefaultTopicPrefix = "noolite"

// Topics builds the gateway's MQTT topics under a common prefix.
// Using these helpers keeps topic naming consistent between publishers
// and subscribers.
//
//	topics := mqtt.NewTopics("noolite")
//	topics.State(4)     // "noolite/state/4"
//	topics.Command(4)   // "noolite/command/4"
//	topics.Frame(3)     // "noolite/frame/3"
type Topics struct {
	Prefix string
}

// NewTopics returns a Topics rooted at prefix, or DefaultTopicPrefix when
// prefix is empty. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Bulb Topics
// =============================================================================

// State returns the retained state topic for a bulb.
//
// Example: noolite/state/4
func (t Topics) State(bulbID uint64) string {
	return fmt.Sprintf("%s/state/%d", t.root(), bulbID)
}

// Command returns the topic on which commands for a bulb are received.
//
// Example: noolite/command/4
func (t Topics) Command(bulbID uint64) string {
	return fmt.Sprintf("%s/command/%d", t.root(), bulbID)
}

// Ack returns the topic on which command acknowledgments for a bulb are
// published.
//
// Example: noolite/ack/4
func (t Topics) Ack(bulbID uint64) string {
	return fmt.Sprintf("%s/ack/%d", t.root(), bulbID)
}

// Frame returns the topic carrying raw frames for a transmitter channel,
// consumed by a remote dongle host.
//
// Example: noolite/frame/3
func (t Topics) Frame(channel int) string {
	return fmt.Sprintf("%s/frame/%d", t.root(), channel)
}

// Event returns the topic for registry events of one type.
//
// Example: noolite/event/bulb.deleted
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", t.root(), eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the topic for gateway online/offline status (LWT).
//
// Example: noolite/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// =============================================================================
// Wildcard Subscriptions
// =============================================================================

// AllCommands returns a wildcard pattern for every bulb command topic.
func (t Topics) AllCommands() string {
	return t.root() + "/command/+"
}

// CommandBulbID extracts the bulb id from a command topic. It reports false
// for topics outside the command namespace or with a non-numeric id.
func (t Topics) CommandBulbID(topic string) (uint64, bool) {
	rest, ok := strings.CutPrefix(topic, t.root()+"/command/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
