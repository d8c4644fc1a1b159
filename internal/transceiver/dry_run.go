package transceiver

import (
	"context"
	"sync"

	"github.com/nerrad567/noolite-core/internal/noolite"
)

// historySize bounds the frames kept by DryRun.
const historySize = 64

// DryRun logs frames instead of transmitting them. It keeps the most recent
// frames for inspection.
type DryRun struct {
	logger Logger

	mu      sync.Mutex
	history []noolite.Frame
	total   uint64
}

// NewDryRun creates a transport that only logs.
func NewDryRun(logger Logger) *DryRun {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DryRun{logger: logger}
}

// Send records frame and always succeeds unless ctx is done.
func (d *DryRun) Send(ctx context.Context, frame noolite.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.total++
	d.history = append(d.history, frame)
	if len(d.history) > historySize {
		d.history = d.history[len(d.history)-historySize:]
	}
	d.mu.Unlock()

	d.logger.Info("dry run: frame not transmitted",
		"channel", frame.Channel(),
		"action", frame.Action().String(),
		"frame", frame.String(),
	)
	return nil
}

// Frames returns the most recent frames, oldest first.
func (d *DryRun) Frames() []noolite.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]noolite.Frame(nil), d.history...)
}

// Total returns the number of frames sent since creation.
func (d *DryRun) Total() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}
