// Package dht reads DHT22 (AM2302) humidity and temperature sensors over a
// single GPIO line.
//
// Each read is a short exchange: the host holds the line low to request a
// conversion and releases it, the sensor acknowledges with a low then high
// pulse, and then sends 40 bits. Every bit is a low pulse followed by a high
// pulse whose length encodes the bit value. Edges are timestamped by the
// kernel, so pulse lengths do not depend on scheduling latency.
package dht

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/dht22-sensor/internal/errcode"
	"github.com/sweeney/dht22-sensor/internal/gpio"
	"github.com/sweeney/dht22-sensor/internal/logic"
)

// Line is the single GPIO line a Device talks over. *gpio.LineHandle
// satisfies it.
type Line interface {
	SetLevel(level gpio.Level) error
	ConfigureInput(edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) (gpio.EdgeEvent, error)
	Close() error
}

// Config holds the protocol timings and retry policy. Zero fields take the
// defaults below.
type Config struct {
	// MaxAttempts bounds the exchanges Poll makes before giving up.
	MaxAttempts int

	// HoldLow is how long the host holds the line low to request a reading.
	HoldLow time.Duration
	// Release is how long the host drives the line high before listening.
	Release time.Duration
	// AckTimeout bounds the wait for the sensor's acknowledgement.
	AckTimeout time.Duration
	// EdgeTimeout bounds the wait for each edge after the acknowledgement.
	EdgeTimeout time.Duration

	// MinInterval is the minimum spacing between Polls. Zero disables
	// spacing. ErrorBackoff is added per consecutive failed Poll, up to
	// MaxInterval.
	MinInterval  time.Duration
	ErrorBackoff time.Duration
	MaxInterval  time.Duration

	// Label is the consumer label used by Open.
	Label string

	Logger *logrus.Entry
}

const (
	DefaultMaxAttempts = 8
	DefaultHoldLow     = 2 * time.Millisecond
	DefaultRelease     = 30 * time.Microsecond
	DefaultAckTimeout  = 100 * time.Millisecond
	DefaultEdgeTimeout = 10 * time.Millisecond
)

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.HoldLow <= 0 {
		c.HoldLow = DefaultHoldLow
	}
	if c.Release <= 0 {
		c.Release = DefaultRelease
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.EdgeTimeout <= 0 {
		c.EdgeTimeout = DefaultEdgeTimeout
	}
	if c.ErrorBackoff > 0 && c.MaxInterval <= 0 {
		c.MaxInterval = logic.DefaultMaxInterval
	}
	if c.Label == "" {
		c.Label = gpio.DefaultLabel
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger()).WithField("prefix", "dht")
	}
}

// Device is a DHT22 sensor on one line. It owns the line and is not safe for
// concurrent use, apart from Halt.
type Device struct {
	line  Line
	name  string
	cfg   Config
	log   *logrus.Entry
	pacer *logic.Pacer

	sleep func(time.Duration)
	now   func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Device that takes ownership of line.
func New(line Line, cfg Config) *Device {
	cfg.setDefaults()
	d := &Device{
		line:  line,
		name:  "dht22",
		cfg:   cfg,
		log:   cfg.Logger,
		sleep: time.Sleep,
		now:   time.Now,
	}
	if cfg.MinInterval > 0 || cfg.ErrorBackoff > 0 {
		d.pacer = logic.NewPacer(cfg.MinInterval, cfg.ErrorBackoff, cfg.MaxInterval)
	}
	return d
}

// Open opens pin on the chip device at path chip and returns a Device that
// owns it.
func Open(chip string, pin int, cfg Config, opts ...gpio.Option) (*Device, error) {
	cfg.setDefaults()
	opts = append([]gpio.Option{gpio.WithLogger(cfg.Logger.WithField("prefix", "gpio"))}, opts...)
	h, err := gpio.Open(chip, pin, cfg.Label, opts...)
	if err != nil {
		return nil, err
	}
	d := New(h, cfg)
	d.name = fmt.Sprintf("dht22(%s:%d)", chip, pin)
	return d, nil
}

// Poll performs one reading, retrying the exchange on transient failures.
// When every attempt fails, the error carries the kind of the last failure.
// A missing sensor or an unavailable line fails immediately.
func (d *Device) Poll() (Reading, error) {
	if d.pacer != nil {
		if wait := d.pacer.Delay(d.now()); wait > 0 {
			d.sleep(wait)
		}
	}
	r, err := d.poll()
	if d.pacer != nil {
		d.pacer.Record(d.now(), err == nil)
	}
	return r, err
}

func (d *Device) poll() (Reading, error) {
	var last error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		f, err := d.read()
		if err == nil {
			var r Reading
			if r, err = f.Decode(); err == nil {
				return r, nil
			}
		}
		if !errcode.Retryable(err) {
			return Reading{}, err
		}
		d.log.WithError(err).WithField("attempt", attempt).Debug("read attempt failed")
		last = err
	}
	return Reading{}, fmt.Errorf("read sensor after %d attempts: %w", d.cfg.MaxAttempts, last)
}

// read runs one exchange and returns the raw frame.
func (d *Device) read() (Frame, error) {
	const op = "dht.read"
	var f Frame

	// Idle, then the start request.
	if err := d.line.SetLevel(gpio.High); err != nil {
		return f, err
	}
	if err := d.line.SetLevel(gpio.Low); err != nil {
		return f, err
	}
	d.sleep(d.cfg.HoldLow)
	if err := d.line.SetLevel(gpio.High); err != nil {
		return f, err
	}
	d.sleep(d.cfg.Release)
	if err := d.line.ConfigureInput(gpio.BothEdges); err != nil {
		return f, err
	}

	if err := d.awaitAck(); err != nil {
		return f, err
	}
	if _, err := d.expect(gpio.RisingEdge, "ack"); err != nil {
		return f, err
	}
	if _, err := d.expect(gpio.FallingEdge, "start of data"); err != nil {
		return f, err
	}

	for i := 0; i < FrameBits; i++ {
		rise, err := d.expect(gpio.RisingEdge, "bit")
		if err != nil {
			return f, err
		}
		fall, err := d.expect(gpio.FallingEdge, "bit")
		if err != nil {
			return f, err
		}
		high := fall.Time - rise.Time
		switch Classify(high) {
		case BitOne:
			f.SetBit(i, true)
		case BitZero:
		default:
			return f, errcode.New(errcode.ProtocolError, op, fmt.Sprintf("bit %d high for %v", i, high))
		}
	}
	return f, nil
}

// awaitAck waits for the sensor to pull the line low. Rising edges seen first
// are noise from the release and are discarded.
func (d *Device) awaitAck() error {
	const op = "dht.awaitAck"
	deadline := d.now().Add(d.cfg.AckTimeout)
	for {
		remaining := deadline.Sub(d.now())
		if remaining <= 0 {
			break
		}
		ev, err := d.line.WaitForEdge(remaining)
		if errors.Is(err, errcode.Timeout) {
			break
		}
		if err != nil {
			return err
		}
		if ev.Edge == gpio.FallingEdge {
			return nil
		}
	}
	return errcode.New(errcode.NoSensorDetected, op, fmt.Sprintf("no response within %v", d.cfg.AckTimeout))
}

func (d *Device) expect(want gpio.Edge, phase string) (gpio.EdgeEvent, error) {
	ev, err := d.line.WaitForEdge(d.cfg.EdgeTimeout)
	if err != nil {
		return ev, fmt.Errorf("%s: %w", phase, err)
	}
	if ev.Edge != want {
		return ev, errcode.New(errcode.ProtocolError, "dht.read",
			fmt.Sprintf("%s: expected %v, got %v", phase, want, ev.Edge))
	}
	return ev, nil
}

// Close stops any continuous sensing and releases the line.
func (d *Device) Close() error {
	d.Halt()
	return d.line.Close()
}
