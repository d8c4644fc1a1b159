package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/noolite-core/internal/audit"
	"github.com/nerrad567/noolite-core/internal/bulb"
	"github.com/nerrad567/noolite-core/internal/infrastructure/mqtt"
)

const (
	// commandTimeout bounds one registry operation started from MQTT.
	commandTimeout = 5 * time.Second

	// commandQoS is used for the command subscription and acknowledgments.
	commandQoS = 1

	// auditSource tags audit rows for commands received over MQTT.
	auditSource = "mqtt"
)

// ErrMissingDependency is returned by New when a required option is nil.
var ErrMissingDependency = errors.New("bridge: missing dependency")

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the subset of *mqtt.Client used by the bridge.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// BulbController is the subset of *bulb.Registry driven by commands.
type BulbController interface {
	SetState(ctx context.Context, id uint64, target string, smooth bool) (*bulb.Bulb, error)
	Toggle(ctx context.Context, id uint64, smooth bool) (*bulb.Bulb, error)
	SetBrightness(ctx context.Context, id uint64, brightness int) (*bulb.Bulb, error)
	SetColor(ctx context.Context, id uint64, color string) (*bulb.Bulb, error)
	Command(ctx context.Context, id uint64, name string) (*bulb.Bulb, error)
	Bind(ctx context.Context, id uint64) (*bulb.Bulb, error)
	Unbind(ctx context.Context, id uint64) (*bulb.Bulb, error)
}

// Options configures a Bridge.
type Options struct {
	Client   MQTTClient
	Registry BulbController
	Topics   mqtt.Topics
	Logger   Logger
}

// Bridge subscribes to bulb command topics and applies them to the
// registry.
type Bridge struct {
	client   MQTTClient
	registry BulbController
	topics   mqtt.Topics
	logger   Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// New creates a bridge. Call Start to subscribe.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		client:   opts.Client,
		registry: opts.Registry,
		topics:   opts.Topics,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start subscribes to <prefix>/command/+.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	topic := b.topics.AllCommands()
	if err := b.client.Subscribe(topic, commandQoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.started = true

	b.logger.Info("bridge subscribed to commands", "topic", topic)
	return nil
}

// Stop unsubscribes and cancels commands still in flight.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancel()
	if !b.started {
		return
	}
	b.started = false

	if err := b.client.Unsubscribe(b.topics.AllCommands()); err != nil {
		b.logger.Warn("bridge unsubscribe failed", "error", err)
	}
	b.logger.Info("bridge stopped")
}

// handleMessage decodes one command and acknowledges it. Malformed
// messages are logged and dropped; they carry no id to acknowledge.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	id, ok := b.topics.CommandBulbID(topic)
	if !ok {
		return fmt.Errorf("not a bulb command topic: %s", topic)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parsing command for bulb %d: %w", id, err)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.Command = strings.ToLower(strings.TrimSpace(cmd.Command))

	b.logger.Debug("command received",
		"command_id", cmd.ID,
		"bulb_id", id,
		"command", cmd.Command)

	ctx, cancel := context.WithTimeout(audit.WithSource(b.ctx, auditSource), commandTimeout)
	defer cancel()

	result, err := b.execute(ctx, id, cmd)
	b.publishAck(id, cmd, result, err)

	if err != nil && !errors.Is(err, bulb.ErrValidationRejected) && !errors.Is(err, bulb.ErrNotFound) {
		b.logger.Warn("command failed", "bulb_id", id, "command", cmd.Command, "error", err)
	}
	return nil
}

// execute maps a command message onto a registry operation.
func (b *Bridge) execute(ctx context.Context, id uint64, cmd CommandMessage) (*bulb.Bulb, error) {
	switch cmd.Command {
	case "on":
		return b.registry.SetState(ctx, id, string(bulb.StateOn), cmd.Smooth)
	case "off":
		return b.registry.SetState(ctx, id, string(bulb.StateOff), cmd.Smooth)
	case "state":
		target, err := cmd.stringValue()
		if err != nil {
			return nil, err
		}
		return b.registry.SetState(ctx, id, target, cmd.Smooth)
	case "toggle":
		return b.registry.Toggle(ctx, id, cmd.Smooth)
	case "brightness":
		level, err := cmd.intValue()
		if err != nil {
			return nil, err
		}
		return b.registry.SetBrightness(ctx, id, level)
	case "color":
		color, err := cmd.stringValue()
		if err != nil {
			return nil, err
		}
		return b.registry.SetColor(ctx, id, color)
	case "bind":
		return b.registry.Bind(ctx, id)
	case "unbind":
		return b.registry.Unbind(ctx, id)
	default:
		return b.registry.Command(ctx, id, cmd.Command)
	}
}

func (b *Bridge) publishAck(id uint64, cmd CommandMessage, result *bulb.Bulb, err error) {
	ack := AckMessage{
		CommandID: cmd.ID,
		BulbID:    id,
		Command:   cmd.Command,
		Status:    ackStatusFor(err),
		Bulb:      result,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ack.Error = err.Error()
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("marshalling ack", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.Ack(id), payload, commandQoS, false); err != nil {
		b.logger.Warn("publishing ack", "bulb_id", id, "error", err)
	}
}
