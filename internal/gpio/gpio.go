// Package gpio owns GPIO lines on a Linux GPIO character device.
// The real kernel shim issues v1 uAPI requests; the fake kernel allows testing
// without hardware.
package gpio

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Defaults used by the command line tools. The library itself never reads
// them implicitly; callers pass the chip and label into Open.
const (
	DefaultChip  = "/dev/gpiochip0"
	DefaultLabel = "dht22"
)

// Level is the logical level of a line.
type Level = gpio.Level

const (
	Low  = gpio.Low
	High = gpio.High
)

// Edge selects which transitions a line reports, and names the transition
// carried by an EdgeEvent.
type Edge = gpio.Edge

const (
	NoEdge      = gpio.NoEdge
	RisingEdge  = gpio.RisingEdge
	FallingEdge = gpio.FallingEdge
	BothEdges   = gpio.BothEdges
)

// Direction is the current configuration of a LineHandle's line descriptor.
type Direction int

const (
	Unconfigured Direction = iota
	Input
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return "unconfigured"
}

// EdgeEvent is one line transition reported by the kernel.
type EdgeEvent struct {
	// Time is the kernel's monotonic timestamp of the transition.
	Time time.Duration
	Edge Edge
}

// Readiness is the outcome of waiting on a line descriptor.
type Readiness int

const (
	NotReady Readiness = iota
	Readable
	Failed
)

// Kernel is the set of GPIO character device operations a LineHandle needs.
// Errors are returned raw; LineHandle classifies them.
type Kernel interface {
	// OpenChip opens the chip device read/write with close-on-exec.
	OpenChip(path string) (int, error)

	// RequestEvent arms offset for edge events and returns the event fd.
	RequestEvent(chip int, offset uint32, edge Edge, label string) (int, error)

	// RequestOutput claims offset as an output driven to initial and returns
	// the handle fd.
	RequestOutput(chip int, offset uint32, initial Level, label string) (int, error)

	// SetValue drives a line handle fd.
	SetValue(line int, level Level) error

	// Poll blocks until fd is readable, reports an error condition, or the
	// timeout elapses (NotReady).
	Poll(fd int, timeout time.Duration) (Readiness, error)

	Read(fd int, buf []byte) (int, error)
	Close(fd int) error
}
