package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/noolite-core/internal/bulb"
	"github.com/nerrad567/noolite-core/internal/infrastructure/mqtt"
)

// eventQoS is used for event messages. Retained state uses the client's
// configured QoS.
const eventQoS = 1

// StatePublisher is the subset of *mqtt.Client used by Publisher.
type StatePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// BulbLister lists the current bulbs for Sync.
type BulbLister interface {
	List(ctx context.Context) (bulb.ListResult, error)
}

// Publisher mirrors registry events onto MQTT. It implements
// bulb.Listener.
//
// State topics are retained so a new subscriber sees the latest state.
// Deleting a bulb clears its retained message with an empty payload.
type Publisher struct {
	client StatePublisher
	topics mqtt.Topics
	logger Logger

	mu        sync.Mutex
	published map[uint64]struct{}
}

// NewPublisher creates a publisher over client.
func NewPublisher(client StatePublisher, topics mqtt.Topics, logger Logger) *Publisher {
	if topics.Prefix == "" {
		topics = mqtt.NewTopics("")
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{
		client:    client,
		topics:    topics,
		logger:    logger,
		published: make(map[uint64]struct{}),
	}
}

// HandleBulbEvent publishes the event and refreshes retained state.
func (p *Publisher) HandleBulbEvent(_ context.Context, ev bulb.Event) {
	p.publishEvent(ev)

	switch ev.Type {
	case bulb.EventCreated, bulb.EventUpdated, bulb.EventChanged:
		if ev.Bulb != nil {
			p.publishState(*ev.Bulb, ev.Time)
		}
	case bulb.EventDeleted:
		if ev.Bulb != nil {
			p.clearState(ev.Bulb.ID)
		}
	case bulb.EventCleared:
		p.clearAll()
	case bulb.EventRejected:
		// Nothing changed.
	}
}

// Sync publishes retained state for every bulb. Call after (re)connecting
// so the broker holds current state even if messages were lost.
func (p *Publisher) Sync(ctx context.Context, lister BulbLister) error {
	list, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("listing bulbs for state sync: %w", err)
	}
	now := time.Now().UTC()
	for _, b := range list.Bulbs {
		p.publishState(b, now)
	}
	p.logger.Debug("bulb states synced", "count", len(list.Bulbs))
	return nil
}

func (p *Publisher) publishState(b bulb.Bulb, at time.Time) {
	msg := StateMessage{Bulb: b, UpdatedAt: at}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("marshalling bulb state", "id", b.ID, "error", err)
		return
	}
	if err := p.client.PublishRetained(p.topics.State(b.ID), payload); err != nil {
		p.logger.Warn("publishing bulb state", "id", b.ID, "error", err)
		return
	}

	p.mu.Lock()
	p.published[b.ID] = struct{}{}
	p.mu.Unlock()
}

func (p *Publisher) clearState(id uint64) {
	if err := p.client.PublishRetained(p.topics.State(id), nil); err != nil {
		p.logger.Warn("clearing bulb state", "id", id, "error", err)
		return
	}

	p.mu.Lock()
	delete(p.published, id)
	p.mu.Unlock()
}

func (p *Publisher) clearAll() {
	p.mu.Lock()
	ids := make([]uint64, 0, len(p.published))
	for id := range p.published {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.clearState(id)
	}
}

func (p *Publisher) publishEvent(ev bulb.Event) {
	msg := EventMessage{
		Action:    ev.Action,
		Outcome:   ev.Outcome(),
		Timestamp: ev.Time,
	}
	if ev.Bulb != nil {
		msg.BulbID = ev.Bulb.ID
		channel := ev.Bulb.Channel
		msg.Channel = &channel
	}
	if ev.Frame != nil {
		msg.Frame = ev.Frame.String()
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("marshalling bulb event", "error", err)
		return
	}
	if err := p.client.Publish(p.topics.Event(string(ev.Type)), payload, eventQoS, false); err != nil {
		p.logger.Warn("publishing bulb event", "type", ev.Type, "error", err)
	}
}
