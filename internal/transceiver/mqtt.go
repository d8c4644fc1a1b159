package transceiver

import (
	"context"
	"fmt"

	"github.com/nerrad567/noolite-core/internal/noolite"
)

// Publisher is the MQTT publish operation the driver needs.
// mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// FrameTopics names the topic for a channel's frames. mqtt.Topics
// satisfies it.
type FrameTopics interface {
	Frame(channel int) string
}

// frameQoS is at-least-once; receivers treat a repeated frame like a
// repeated button press.
const frameQoS = 1

// MQTTTransport hands frames to a transmitter attached to another host by
// publishing the 16 hex digit frame to <prefix>/frame/{channel}.
type MQTTTransport struct {
	pub    Publisher
	topics FrameTopics
	logger Logger
}

// NewMQTT creates a transport publishing through pub.
func NewMQTT(pub Publisher, topics FrameTopics, logger Logger) *MQTTTransport {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTTransport{pub: pub, topics: topics, logger: logger}
}

// Send publishes frame. Frames are never retained.
func (t *MQTTTransport) Send(ctx context.Context, frame noolite.Frame) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}

	topic := t.topics.Frame(frame.Channel())
	payload, err := frame.MarshalText()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}

	if err := t.pub.Publish(topic, payload, frameQoS, false); err != nil {
		return fmt.Errorf("%w: publishing to %s: %w", ErrTransfer, topic, err)
	}

	t.logger.Debug("frame published", "topic", topic, "frame", string(payload))
	return nil
}
