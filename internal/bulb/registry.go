package bulb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/noolite-core/internal/noolite"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transmitter sends one frame to the RF transmitter.
// transceiver.Transport implementations satisfy it.
type Transmitter interface {
	Send(ctx context.Context, frame noolite.Frame) error
}

// Registry owns bulb records and turns operations on them into frames.
//
// Every mutation follows validate, persist, then transmit. A transmit
// failure is returned wrapped in ErrDevice together with the persisted
// bulb; nothing is rolled back. A rejected input returns the unchanged
// bulb wrapped in ErrValidationRejected and neither persists nor transmits.
//
// All public methods are thread-safe.
type Registry struct {
	store Store
	tx    Transmitter

	// createMu serialises channel allocation within this process. Store.Create
	// makes the reservation atomic across processes.
	createMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []Listener

	logger Logger
	now    func() time.Time
}

// NewRegistry creates a registry over store that transmits through tx.
func NewRegistry(store Store, tx Transmitter) *Registry {
	return &Registry{
		store:  store,
		tx:     tx,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Subscribe registers l for events on every completed operation.
func (r *Registry) Subscribe(l Listener) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenersMu.Unlock()
}

// SkippedRecord is a stored record that could not be decoded.
type SkippedRecord struct {
	ID  uint64 `json:"id"`
	Err error  `json:"-"`
}

// ListResult is the outcome of List.
type ListResult struct {
	Bulbs   []Bulb
	Skipped []SkippedRecord
}

// List returns every decodable bulb in id order. Records that fail to
// decode are reported in Skipped and do not fail the listing.
func (r *Registry) List(ctx context.Context) (ListResult, error) {
	records, err := r.store.GetAll(ctx)
	if err != nil {
		return ListResult{}, fmt.Errorf("listing bulbs: %w", err)
	}

	result := ListResult{Bulbs: make([]Bulb, 0, len(records))}
	for _, rec := range records {
		b, err := decodeRecord(rec.Data, rec.ID)
		if err != nil {
			r.logger.Warn("skipping malformed bulb record", "id", rec.ID, "error", err)
			result.Skipped = append(result.Skipped, SkippedRecord{ID: rec.ID, Err: err})
			continue
		}
		result.Bulbs = append(result.Bulbs, *b)
	}
	return result, nil
}

// LocationGroup is the set of bulbs sharing a location.
type LocationGroup struct {
	Name  string `json:"name"`
	Bulbs []Bulb `json:"bulbs"`
}

// ByLocation groups all bulbs by location, in order of first appearance.
func (r *Registry) ByLocation(ctx context.Context) ([]LocationGroup, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	groups := make([]LocationGroup, 0)
	for _, b := range list.Bulbs {
		i, ok := index[b.Location]
		if !ok {
			i = len(groups)
			index[b.Location] = i
			groups = append(groups, LocationGroup{Name: b.Location})
		}
		groups[i].Bulbs = append(groups[i].Bulbs, b)
	}
	return groups, nil
}

// InLocation returns the bulbs whose location equals location.
func (r *Registry) InLocation(ctx context.Context, location string) ([]Bulb, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	bulbs := make([]Bulb, 0)
	for _, b := range list.Bulbs {
		if b.Location == location {
			bulbs = append(bulbs, b)
		}
	}
	return bulbs, nil
}

// Get returns the bulb with id.
func (r *Registry) Get(ctx context.Context, id uint64) (*Bulb, error) {
	data, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("bulb %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("loading bulb %d: %w", id, err)
	}

	b, err := decodeRecord(data, id)
	if err != nil {
		return nil, fmt.Errorf("bulb %d: %w", id, err)
	}
	return b, nil
}

// Create allocates the lowest free channel and stores a new bulb with
// default state. It returns ErrNoChannelAvailable, storing nothing, when
// all channels are owned.
//
// The channel is chosen before an id is drawn so exhaustion never consumes
// an id. If another writer claims the channel first, Create re-reads the
// occupied set and tries again.
func (r *Registry) Create(ctx context.Context, f Fields) (*Bulb, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	var (
		id    uint64
		taken []int
	)
	for range MaxChannels {
		occupied, err := r.occupiedChannels(ctx)
		if err != nil {
			return nil, err
		}

		channel, err := AllocateChannel(append(occupied, taken...))
		if err != nil {
			r.logger.Warn("bulb creation refused", "reason", "no channel available")
			return nil, err
		}

		if id == 0 {
			if id, err = r.store.NextID(ctx); err != nil {
				return nil, fmt.Errorf("allocating bulb id: %w", err)
			}
		}

		b := newBulb(id, channel, f)
		data, err := encodeRecord(b)
		if err != nil {
			return nil, err
		}

		err = r.store.Create(ctx, id, channel, data)
		if errors.Is(err, ErrChannelTaken) {
			r.logger.Debug("channel claimed concurrently, retrying", "channel", channel, "id", id)
			taken = append(taken, channel)
			continue
		}
		if errors.Is(err, ErrExists) {
			// The counter fell behind the stored ids; draw again.
			r.logger.Warn("bulb id already in use, drawing another", "id", id)
			id = 0
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storing bulb %d: %w", id, err)
		}

		r.logger.Info("bulb created", "id", b.ID, "channel", b.Channel, "name", b.Name)
		r.emit(ctx, Event{Type: EventCreated, Action: "create", Bulb: b.Copy()})
		return b, nil
	}

	return nil, fmt.Errorf("%w: every candidate channel was claimed concurrently", ErrNoChannelAvailable)
}

// occupiedChannels returns the channel of every stored record, including
// records that fail full decoding but still carry a channel.
func (r *Registry) occupiedChannels(ctx context.Context) ([]int, error) {
	records, err := r.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading occupied channels: %w", err)
	}

	channels := make([]int, 0, len(records))
	for _, rec := range records {
		if ch, ok := peekChannel(rec.Data); ok {
			channels = append(channels, ch)
		}
	}
	return channels, nil
}

// Update overwrites the supplied descriptive fields. Channel and state are
// untouched and nothing is transmitted.
func (r *Registry) Update(ctx context.Context, id uint64, f Fields) (*Bulb, error) {
	return r.mutate(ctx, id, mutation{
		action:  "update",
		event:   EventUpdated,
		persist: true,
		apply: func(b *Bulb) (*noolite.Frame, error) {
			f.apply(b)
			return nil, nil
		},
	})
}

// SetState switches the bulb on or off. target must be "on" or "off";
// anything else is rejected without transmitting.
func (r *Registry) SetState(ctx context.Context, id uint64, target string, smooth bool) (*Bulb, error) {
	return r.mutate(ctx, id, mutation{
		action:  "set_state",
		event:   EventChanged,
		persist: true,
		apply: func(b *Bulb) (*noolite.Frame, error) {
			state, err := ParseState(target)
			if err != nil {
				return nil, err
			}
			b.State = state
			var f noolite.Frame
			if state == StateOn {
				f = noolite.SwitchOn(b.Channel, smooth)
			} else {
				f = noolite.SwitchOff(b.Channel, smooth)
			}
			return &f, nil
		},
	})
}

// Toggle flips the stored state and transmits Toggle.
func (r *Registry) Toggle(ctx context.Context, id uint64, smooth bool) (*Bulb, error) {
	return r.mutate(ctx, id, mutation{
		action:  "toggle",
		event:   EventChanged,
		persist: true,
		apply: func(b *Bulb) (*noolite.Frame, error) {
			b.State = b.State.Flipped()
			f := noolite.Toggle(b.Channel, smooth)
			return &f, nil
		},
	})
}

// SetBrightness sets brightness in [0,100] and transmits the level.
func (r *Registry) SetBrightness(ctx context.Context, id uint64, brightness int) (*Bulb, error) {
	return r.mutate(ctx, id, mutation{
		action:  "set_brightness",
		event:   EventChanged,
		persist: true,
		apply: func(b *Bulb) (*noolite.Frame, error) {
			if !ValidBrightness(brightness) {
				return nil, fmt.Errorf("%w: brightness %d outside [%d,%d]",
					ErrValidationRejected, brightness, MinBrightness, MaxBrightness)
			}
			b.Brightness = brightness
			f := noolite.SetBrightness(b.Channel, brightness)
			return &f, nil
		},
	})
}

// SetColor sets a six digit hex color and transmits its RGB bytes.
func (r *Registry) SetColor(ctx context.Context, id uint64, color string) (*Bulb, error) {
	return r.mutate(ctx, id, mutation{
		action:  "set_color",
		event:   EventChanged,
		persist: true,
		apply: func(b *Bulb) (*noolite.Frame, error) {
			if !ValidColor(color) {
				return nil, fmt.Errorf("%w: color %q is not six hex digits", ErrValidationRejected, color)
			}
			f, ok := noolite.SetColor(b.Channel, color)
			if !ok {
				return nil, fmt.Errorf("%w: color %q", ErrValidationRejected, color)
			}
			b.Color = color
			return &f, nil
		},
	})
}

// Command transmits a named effect command. The record is not modified.
func (r *Registry) Command(ctx context.Context, id uint64, name string) (*Bulb, error) {
	return r.mutate(ctx, id, mutation{
		action: "command",
		event:  EventChanged,
		apply: func(b *Bulb) (*noolite.Frame, error) {
			cmd, err := ParseCommand(name)
			if err != nil {
				return nil, err
			}
			f, ok := cmd.Frame(b.Channel)
			if !ok {
				return nil, fmt.Errorf("%w: command %v has no frame", ErrValidationRejected, cmd)
			}
			return &f, nil
		},
	})
}

// Bind marks the bulb paired and transmits Bind so the receiver learns
// the channel.
func (r *Registry) Bind(ctx context.Context, id uint64) (*Bulb, error) {
	return r.setBinded(ctx, id, true)
}

// Unbind marks the bulb unpaired and transmits Unbind.
func (r *Registry) Unbind(ctx context.Context, id uint64) (*Bulb, error) {
	return r.setBinded(ctx, id, false)
}

func (r *Registry) setBinded(ctx context.Context, id uint64, binded bool) (*Bulb, error) {
	action, code := "unbind", noolite.ActionUnbind
	if binded {
		action, code = "bind", noolite.ActionBind
	}
	return r.mutate(ctx, id, mutation{
		action:  action,
		event:   EventChanged,
		persist: true,
		apply: func(b *Bulb) (*noolite.Frame, error) {
			b.Binded = binded
			f := noolite.Encode(code, b.Channel, noolite.FormatNone)
			return &f, nil
		},
	})
}

// Delete removes one bulb, freeing its channel.
func (r *Registry) Delete(ctx context.Context, id uint64) error {
	// Best effort: the event carries the record when it still decodes.
	before, _ := r.Get(ctx, id) //nolint:errcheck // absence is reported by Store.Delete

	removed, err := r.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting bulb %d: %w", id, err)
	}
	if !removed {
		return fmt.Errorf("bulb %d: %w", id, ErrNotFound)
	}

	if before == nil {
		before = &Bulb{ID: id}
	}
	r.logger.Info("bulb deleted", "id", id)
	r.emit(ctx, Event{Type: EventDeleted, Action: "delete", Bulb: before})
	return nil
}

// DeleteAll removes every bulb and resets the id counter.
func (r *Registry) DeleteAll(ctx context.Context) error {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	removed, err := r.store.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("deleting all bulbs: %w", err)
	}

	r.logger.Info("all bulbs deleted", "removed_any", removed)
	r.emit(ctx, Event{Type: EventCleared, Action: "delete_all"})
	return nil
}

// Stats summarises the registry for monitoring.
type Stats struct {
	Total        int `json:"total"`
	On           int `json:"on"`
	Off          int `json:"off"`
	Binded       int `json:"binded"`
	FreeChannels int `json:"free_channels"`
	Skipped      int `json:"skipped"`
}

// GetStats computes current registry statistics.
func (r *Registry) GetStats(ctx context.Context) (Stats, error) {
	list, err := r.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(list.Bulbs), Skipped: len(list.Skipped)}
	var used [MaxChannels]bool
	for _, b := range list.Bulbs {
		if b.State == StateOn {
			stats.On++
		} else {
			stats.Off++
		}
		if b.Binded {
			stats.Binded++
		}
		used[b.Channel] = true
	}
	for _, u := range used {
		if !u {
			stats.FreeChannels++
		}
	}
	return stats, nil
}

// mutation describes one read-modify-write operation.
type mutation struct {
	action  string
	event   EventType
	persist bool
	// apply validates and modifies b in place, returning the frame to send
	// (nil for none). An error leaves the stored record untouched.
	apply func(b *Bulb) (*noolite.Frame, error)
}

// mutate loads the bulb, applies m, persists and transmits.
func (r *Registry) mutate(ctx context.Context, id uint64, m mutation) (*Bulb, error) {
	b, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	original := b.Copy()

	frame, err := m.apply(b)
	if err != nil {
		r.logger.Debug("bulb operation rejected", "id", id, "action", m.action, "reason", err)
		r.emit(ctx, Event{Type: EventRejected, Action: m.action, Bulb: original.Copy(), Err: err})
		return original, err
	}

	if m.persist {
		data, err := encodeRecord(b)
		if err != nil {
			return original, err
		}
		if err := r.store.Put(ctx, id, data); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("bulb %d: %w", id, ErrNotFound)
			}
			return original, fmt.Errorf("storing bulb %d: %w", id, err)
		}
	}

	var sendErr error
	if frame != nil {
		sendErr = r.transmit(ctx, b, m.action, *frame)
	}

	r.emit(ctx, Event{Type: m.event, Action: m.action, Bulb: b.Copy(), Frame: frame, Err: sendErr})
	return b, sendErr
}

// transmit hands frame to the transmitter and wraps failures in ErrDevice.
func (r *Registry) transmit(ctx context.Context, b *Bulb, action string, frame noolite.Frame) error {
	r.logger.Info("sending frame",
		"id", b.ID,
		"channel", b.Channel,
		"action", action,
		"frame", frame.String(),
	)

	if err := r.tx.Send(ctx, frame); err != nil {
		r.logger.Error("frame not sent", "id", b.ID, "channel", b.Channel, "error", err)
		return fmt.Errorf("%w: bulb %d: %w", ErrDevice, b.ID, err)
	}
	return nil
}

func (r *Registry) emit(ctx context.Context, ev Event) {
	ev.Time = r.now().UTC()

	r.listenersMu.RLock()
	listeners := r.listeners
	r.listenersMu.RUnlock()

	for _, l := range listeners {
		l.HandleBulbEvent(ctx, ev)
	}
}
