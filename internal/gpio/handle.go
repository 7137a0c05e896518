package gpio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dht22-sensor/internal/errcode"
)

// Layout of struct gpioevent_data from linux/gpio.h.
const (
	eventRecordSize = 16
	eventRisingID   = 1
	eventFallingID  = 2
)

// maxLabel is GPIO_MAX_NAME_SIZE less the terminating NUL.
const maxLabel = 31

// LineHandle exclusively owns an open chip descriptor and, once configured,
// one line descriptor for a single pin.
//
// The line descriptor is open if and only if Direction() != Unconfigured.
// Reconfiguring always closes the previous line descriptor before the new
// request is issued, so the kernel never sees the pin claimed twice by us.
//
// A LineHandle is not safe for concurrent use.
type LineHandle struct {
	kern   Kernel
	chip   string
	chipFd int
	lineFd int
	pin    uint32
	label  string
	dir    Direction
	edge   Edge
	log    *logrus.Entry
}

// Option configures a LineHandle at Open.
type Option func(*LineHandle)

// WithKernel replaces the GPIO character device shim, typically with a
// FakeKernel in tests.
func WithKernel(k Kernel) Option {
	return func(h *LineHandle) { h.kern = k }
}

// WithLogger sets the logger used for teardown diagnostics.
func WithLogger(l *logrus.Entry) Option {
	return func(h *LineHandle) { h.log = l }
}

// Open opens the chip device at path chip for pin. No line is requested until
// the handle is first configured. The label is truncated to the kernel's
// consumer label size.
func Open(chip string, pin int, label string, opts ...Option) (*LineHandle, error) {
	const op = "gpio.Open"
	if pin < 0 {
		return nil, errcode.New(errcode.ResourceUnavailable, op, fmt.Sprintf("invalid pin %d", pin))
	}
	h := &LineHandle{
		kern:   defaultKernel(),
		chip:   chip,
		chipFd: -1,
		lineFd: -1,
		pin:    uint32(pin),
		label:  truncateLabel(label),
		edge:   BothEdges,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logrus.NewEntry(logrus.StandardLogger()).WithField("prefix", "gpio")
	}

	fd, err := h.kern.OpenChip(chip)
	if err != nil {
		return nil, &errcode.E{C: errcode.ResourceUnavailable, Op: op, Msg: "open " + chip, Err: err}
	}
	h.chipFd = fd
	return h, nil
}

func truncateLabel(label string) string {
	if len(label) > maxLabel {
		return label[:maxLabel]
	}
	return label
}

// Pin returns the line offset on the chip.
func (h *LineHandle) Pin() int { return int(h.pin) }

// Chip returns the chip device path.
func (h *LineHandle) Chip() string { return h.chip }

// Label returns the consumer label as it is sent to the kernel.
func (h *LineHandle) Label() string { return h.label }

// Direction returns the current line configuration.
func (h *LineHandle) Direction() Direction { return h.dir }

// ConfigureInput requests the line for edge events of the given kind.
func (h *LineHandle) ConfigureInput(edge Edge) error {
	const op = "gpio.ConfigureInput"
	if h.chipFd < 0 {
		return errcode.New(errcode.ResourceUnavailable, op, "handle is closed")
	}
	if edge == NoEdge {
		return errcode.New(errcode.ProtocolError, op, "an edge selector is required")
	}

	h.releaseLine()
	h.edge = edge
	fd, err := h.kern.RequestEvent(h.chipFd, h.pin, edge, h.label)
	if err != nil {
		return h.requestError(op, err)
	}
	if fd <= 0 {
		return errcode.New(errcode.ProtocolError, op, fmt.Sprintf("kernel returned invalid descriptor %d", fd))
	}
	h.lineFd = fd
	h.dir = Input
	return nil
}

// ConfigureOutput requests the line as an output driven to initial.
func (h *LineHandle) ConfigureOutput(initial Level) error {
	const op = "gpio.ConfigureOutput"
	if h.chipFd < 0 {
		return errcode.New(errcode.ResourceUnavailable, op, "handle is closed")
	}

	h.releaseLine()
	fd, err := h.kern.RequestOutput(h.chipFd, h.pin, initial, h.label)
	if err != nil {
		return h.requestError(op, err)
	}
	if fd <= 0 {
		return errcode.New(errcode.ProtocolError, op, fmt.Sprintf("kernel returned invalid descriptor %d", fd))
	}
	h.lineFd = fd
	h.dir = Output
	return nil
}

// requestError classifies a rejected line request. A line claimed by another
// consumer is reported as unavailable rather than as a protocol failure.
func (h *LineHandle) requestError(op string, err error) error {
	msg := fmt.Sprintf("request pin %d on %s", h.pin, h.chip)
	if errors.Is(err, syscall.EBUSY) {
		return &errcode.E{C: errcode.ResourceUnavailable, Op: op, Msg: msg, Err: err}
	}
	return &errcode.E{C: errcode.ProtocolError, Op: op, Msg: msg, Err: err}
}

// WaitForEdge blocks until the next edge event arrives or timeout elapses.
// A timeout of zero checks for a pending event without blocking.
//
// If the line is not configured for input it is first configured with the
// most recently requested edge selector (both edges by default).
func (h *LineHandle) WaitForEdge(timeout time.Duration) (EdgeEvent, error) {
	const op = "gpio.WaitForEdge"
	if h.dir != Input {
		if err := h.ConfigureInput(h.edge); err != nil {
			return EdgeEvent{}, err
		}
	}
	if timeout < 0 {
		timeout = 0
	}

	ready, err := h.kern.Poll(h.lineFd, timeout)
	if err != nil {
		return EdgeEvent{}, errcode.Wrap(errcode.IOError, op, err)
	}
	switch ready {
	case NotReady:
		return EdgeEvent{}, errcode.New(errcode.Timeout, op, fmt.Sprintf("no edge on pin %d within %v", h.pin, timeout))
	case Failed:
		return EdgeEvent{}, errcode.New(errcode.IOError, op, "error condition on line descriptor")
	}

	var buf [eventRecordSize]byte
	n, err := h.kern.Read(h.lineFd, buf[:])
	if err != nil {
		return EdgeEvent{}, errcode.Wrap(errcode.IOError, op, err)
	}
	if n != eventRecordSize {
		return EdgeEvent{}, errcode.New(errcode.IOError, op, fmt.Sprintf("read %d bytes, expected %d", n, eventRecordSize))
	}

	ev := EdgeEvent{Time: time.Duration(binary.NativeEndian.Uint64(buf[0:8]))}
	switch id := binary.NativeEndian.Uint32(buf[8:12]); id {
	case eventRisingID:
		ev.Edge = RisingEdge
	case eventFallingID:
		ev.Edge = FallingEdge
	default:
		return EdgeEvent{}, errcode.New(errcode.ProtocolError, op, fmt.Sprintf("unknown event id %d", id))
	}
	return ev, nil
}

// SetLevel drives the line. If the line is not configured for output it is
// first configured with level as its default value.
func (h *LineHandle) SetLevel(level Level) error {
	const op = "gpio.SetLevel"
	if h.dir != Output {
		if err := h.ConfigureOutput(level); err != nil {
			return err
		}
	}
	if err := h.kern.SetValue(h.lineFd, level); err != nil {
		return errcode.Wrap(errcode.IOError, op, err)
	}
	return nil
}

// Move transfers ownership of both descriptors to a new handle. The source is
// left owning nothing, so closing it performs no I/O.
func (h *LineHandle) Move() *LineHandle {
	moved := *h
	h.chipFd = -1
	h.lineFd = -1
	h.dir = Unconfigured
	return &moved
}

// Close releases the line descriptor and then the chip descriptor. Close
// failures are logged, not returned; the handle is unusable either way.
// Calling Close more than once is harmless.
func (h *LineHandle) Close() error {
	h.releaseLine()
	if h.chipFd >= 0 {
		if err := h.kern.Close(h.chipFd); err != nil {
			h.log.WithError(err).WithField("chip", h.chip).Warn("failed to close chip descriptor")
		}
		h.chipFd = -1
	}
	return nil
}

func (h *LineHandle) releaseLine() {
	if h.lineFd >= 0 {
		if err := h.kern.Close(h.lineFd); err != nil {
			h.log.WithError(err).WithField("pin", h.pin).Warn("failed to close line descriptor")
		}
	}
	h.lineFd = -1
	h.dir = Unconfigured
}
