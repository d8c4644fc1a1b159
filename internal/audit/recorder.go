package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/nerrad567/noolite-core/internal/bulb"
)

// Entity types recorded by Recorder.
const (
	EntityBulb     = "bulb"
	EntityRegistry = "registry"
)

// Logger is the logging interface used by Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type sourceKey struct{}

// WithSource tags ctx with the origin of a request (api, mqtt, ...) so the
// audit row can record it.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source stored by WithSource, or "system".
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "system"
}

// recordTimeout bounds the insert so a slow disk never stalls the caller.
const recordTimeout = 2 * time.Second

// Recorder turns registry events into audit rows. It implements
// bulb.Listener. Failures to write are logged, never returned.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// HandleBulbEvent stores one audit row for ev.
func (r *Recorder) HandleBulbEvent(ctx context.Context, ev bulb.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	entry := &AuditLog{
		Action:     ev.Action,
		EntityType: EntityRegistry,
		Outcome:    ev.Outcome(),
		Source:     SourceFrom(ctx),
		CreatedAt:  ev.Time,
	}

	details := map[string]any{}
	if b := ev.Bulb; b != nil {
		entry.EntityType = EntityBulb
		entry.EntityID = strconv.FormatUint(b.ID, 10)
		details["channel"] = b.Channel
		details["state"] = string(b.State)
		details["brightness"] = b.Brightness
		details["color"] = b.Color
		details["binded"] = b.Binded
	}
	if ev.Frame != nil {
		details["frame"] = ev.Frame.String()
	}
	if ev.Err != nil {
		details["error"] = ev.Err.Error()
	}
	if len(details) > 0 {
		entry.Details = details
	}

	if err := r.repo.Create(ctx, entry); err != nil && r.logger != nil {
		r.logger.Warn("audit record not stored", "action", ev.Action, "error", err)
	}
}
