package transceiver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/nerrad567/noolite-core/internal/noolite"
)

// HID class SET_REPORT request used by the PC118/PC1132 transmitters.
const (
	// requestTypeClassInterfaceOut is host-to-device | class | interface.
	requestTypeClassInterfaceOut = 0x21

	// requestSetReport is the HID SET_REPORT request.
	requestSetReport = 0x09

	// reportOutput selects an output report (type 0x03 << 8, id 0).
	reportOutput = 0x300

	defaultUSBTimeout = time.Second
)

// USBConfig identifies the transmitter on the bus.
type USBConfig struct {
	VendorID  uint16
	ProductID uint16
	Interface int
	Timeout   time.Duration
}

// usbDevice is the part of an opened USB device the driver uses.
type usbDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	Close() error
}

// usbOpener opens the device with the given ids and claims the interface.
// It returns a nil device and nil error when nothing matches.
type usbOpener func(cfg USBConfig) (usbDevice, error)

// USBTransport sends frames with a HID SET_REPORT control transfer.
//
// The device is opened, used once and closed on every Send. Sends are
// serialised so two transfers never interleave on the bus.
type USBTransport struct {
	cfg    USBConfig
	open   usbOpener
	logger Logger
	mu     sync.Mutex
}

// NewUSB creates a transport for the transmitter described by cfg.
func NewUSB(cfg USBConfig, logger Logger) *USBTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultUSBTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &USBTransport{cfg: cfg, open: openGoUSB, logger: logger}
}

// Send opens the transmitter, writes frame as an output report and
// releases the device.
func (t *USBTransport) Send(ctx context.Context, frame noolite.Frame) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dev, err := t.open(t.cfg)
	if err != nil {
		return fmt.Errorf("%w: opening %04x:%04x: %w", ErrTransfer, t.cfg.VendorID, t.cfg.ProductID, err)
	}
	if dev == nil {
		return fmt.Errorf("%w: %04x:%04x", ErrDeviceNotFound, t.cfg.VendorID, t.cfg.ProductID)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			t.logger.Warn("closing usb device", "error", cerr)
		}
	}()

	n, err := dev.Control(requestTypeClassInterfaceOut, requestSetReport, reportOutput, 0, frame[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	if n != noolite.FrameSize {
		return fmt.Errorf("%w: short write %d of %d bytes", ErrTransfer, n, noolite.FrameSize)
	}

	t.logger.Debug("usb frame sent", "frame", frame.String())
	return nil
}

// goUSBDevice owns the libusb context, device and claimed interface of
// one transfer and releases them in reverse order.
type goUSBDevice struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	conf *gousb.Config
	intf *gousb.Interface
}

func (d *goUSBDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return d.dev.Control(rType, request, val, idx, data)
}

func (d *goUSBDevice) Close() error {
	if d.intf != nil {
		d.intf.Close()
	}
	var firstErr error
	if d.conf != nil {
		firstErr = d.conf.Close()
	}
	if d.dev != nil {
		if err := d.dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openGoUSB opens the first matching device through libusb, detaches the
// kernel HID driver and claims the configured interface.
func openGoUSB(cfg USBConfig) (usbDevice, error) {
	d := &goUSBDevice{ctx: gousb.NewContext()}

	dev, err := d.ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		d.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, err
	}
	if dev == nil {
		d.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, nil
	}
	d.dev = dev
	dev.ControlTimeout = cfg.Timeout

	if err := dev.SetAutoDetach(true); err != nil {
		d.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("enabling kernel driver auto-detach: %w", err)
	}

	num, err := dev.ActiveConfigNum()
	if err != nil {
		d.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("reading active configuration: %w", err)
	}
	if d.conf, err = dev.Config(num); err != nil {
		d.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("selecting configuration %d: %w", num, err)
	}
	if d.intf, err = d.conf.Interface(cfg.Interface, 0); err != nil {
		d.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("claiming interface %d: %w", cfg.Interface, err)
	}

	return d, nil
}
