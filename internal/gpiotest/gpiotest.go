//go:build linux

// Package gpiotest provides simulated GPIO chips backed by the gpio-sim
// kernel module, for tests that exercise the real character device path.
package gpiotest

import (
	"testing"

	"github.com/warthog618/go-gpiosim"

	"github.com/sweeney/dht22-sensor/internal/gpio"
)

// Chip is a simulated gpiochip with a fixed number of unnamed lines. Pins are
// handed out sequentially by NewHandle.
type Chip struct {
	sim  *gpiosim.Simpleton
	next int
}

// New creates a simulated chip with the given number of lines. The test is
// skipped when gpio-sim is unavailable, which is the usual case without root.
// The chip is removed when the test completes.
func New(t testing.TB, lines int) *Chip {
	t.Helper()
	s, err := gpiosim.NewSimpleton(lines)
	if err != nil {
		t.Skipf("gpio-sim unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &Chip{sim: s}
}

// Path returns the chip device path, e.g. /dev/gpiochip3.
func (c *Chip) Path() string {
	return c.sim.DevPath()
}

// NewHandle opens a LineHandle on the next unused pin. The handle is closed
// when the test completes.
func (c *Chip) NewHandle(t testing.TB, label string) *gpio.LineHandle {
	t.Helper()
	pin := c.next
	c.next++
	h, err := gpio.Open(c.Path(), pin, label)
	if err != nil {
		t.Fatalf("open pin %d: %v", pin, err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// SetLevel sets the external pull on pin, which is the level userspace reads
// while the line is an input. Changing it generates an edge.
func (c *Chip) SetLevel(t testing.TB, pin int, level gpio.Level) {
	t.Helper()
	var err error
	if level {
		err = c.sim.Pullup(pin)
	} else {
		err = c.sim.Pulldown(pin)
	}
	if err != nil {
		t.Fatalf("pull pin %d %v: %v", pin, level, err)
	}
}

// Level returns the level userspace is driving pin to while the line is an
// output.
func (c *Chip) Level(t testing.TB, pin int) gpio.Level {
	t.Helper()
	v, err := c.sim.Level(pin)
	if err != nil {
		t.Fatalf("read pin %d: %v", pin, err)
	}
	return v != 0
}
