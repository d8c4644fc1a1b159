package transceiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/noolite-core/internal/infrastructure/config"
	"github.com/nerrad567/noolite-core/internal/noolite"
)

// Domain errors for transceiver drivers.
var (
	// ErrDeviceNotFound is returned when no transmitter with the configured
	// vendor and product id is attached.
	ErrDeviceNotFound = errors.New("transceiver: device not found")

	// ErrTransfer is returned when the device was found but the frame could
	// not be delivered.
	ErrTransfer = errors.New("transceiver: transfer failed")

	// ErrUnknownDriver is returned by New for an unrecognised driver name.
	ErrUnknownDriver = errors.New("transceiver: unknown driver")
)

// Transport delivers one encoded frame to the RF transmitter.
//
// Implementations acquire whatever they need per call and release it before
// returning; there is no pooling, retry or queueing.
type Transport interface {
	Send(ctx context.Context, frame noolite.Frame) error
}

// Logger defines the logging interface used by the drivers.
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

// Options carries the collaborators some drivers need.
type Options struct {
	// Publisher is required by the mqtt driver.
	Publisher Publisher
	// Topics names the frame topics for the mqtt driver.
	Topics FrameTopics
	Logger Logger
}

// New builds the transport selected by cfg.Driver.
func New(cfg config.TransceiverConfig, opts Options) (Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	switch cfg.Driver {
	case config.TransceiverDriverUSB:
		return NewUSB(USBConfig{
			VendorID:  uint16(cfg.VendorID),  //nolint:gosec // validated as 16-bit in config
			ProductID: uint16(cfg.ProductID), //nolint:gosec // validated as 16-bit in config
			Interface: cfg.Interface,
			Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
		}, logger), nil
	case config.TransceiverDriverMQTT:
		if opts.Publisher == nil || opts.Topics == nil {
			return nil, fmt.Errorf("transceiver: mqtt driver needs a connected MQTT client")
		}
		return NewMQTT(opts.Publisher, opts.Topics, logger), nil
	case config.TransceiverDriverDryRun:
		return NewDryRun(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
