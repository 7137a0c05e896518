package gpio

import (
	"encoding/binary"
	"fmt"
	"sort"
	"syscall"
	"time"
)

// FakeKernel is a test double for the GPIO character device. It hands out
// descriptors, records every operation, and delivers scripted edge events.
type FakeKernel struct {
	// Events are delivered in order, one per read of an event descriptor.
	Events []EdgeEvent

	// OnRequestEvent, if set, is called after each successful event request
	// and may append to Events.
	OnRequestEvent func(k *FakeKernel, pin uint32)

	// Values records the last level driven onto each pin.
	Values map[uint32]Level

	// Ops is an ordered log of operations, e.g. "open /dev/gpiochip0 = 3",
	// "request-event 4 both = 4", "set 4 high", "close 4".
	Ops []string

	// Timeouts records the timeout of every Poll call.
	Timeouts []time.Duration

	// Injected failures. RequestError applies to both request kinds.
	OpenError    error
	RequestError error
	SetError     error
	PollError    error
	ReadError    error
	CloseError   error

	// PollFailed makes Poll report an error condition on the descriptor.
	PollFailed bool

	// ShortRead, if > 0, truncates every event record to that many bytes.
	ShortRead int

	// InvalidFd makes line requests succeed but return descriptor 0.
	InvalidFd bool

	nextFd    int
	open      map[int]string
	peakLines int
}

// NewFakeKernel creates an empty FakeKernel.
func NewFakeKernel() *FakeKernel {
	return &FakeKernel{
		Values: make(map[uint32]Level),
		open:   make(map[int]string),
		nextFd: 3,
	}
}

func (k *FakeKernel) alloc(kind string) int {
	fd := k.nextFd
	k.nextFd++
	k.open[fd] = kind
	if kind == "line" && k.OpenLines() > k.peakLines {
		k.peakLines = k.OpenLines()
	}
	return fd
}

// OpenChip implements Kernel.
func (k *FakeKernel) OpenChip(path string) (int, error) {
	if k.OpenError != nil {
		k.Ops = append(k.Ops, "open "+path+" failed")
		return -1, k.OpenError
	}
	fd := k.alloc("chip")
	k.Ops = append(k.Ops, fmt.Sprintf("open %s = %d", path, fd))
	return fd, nil
}

// RequestEvent implements Kernel.
func (k *FakeKernel) RequestEvent(chip int, offset uint32, edge Edge, label string) (int, error) {
	if k.RequestError != nil {
		k.Ops = append(k.Ops, fmt.Sprintf("request-event %d failed", offset))
		return -1, k.RequestError
	}
	if k.InvalidFd {
		k.Ops = append(k.Ops, fmt.Sprintf("request-event %d = 0", offset))
		return 0, nil
	}
	fd := k.alloc("line")
	k.Ops = append(k.Ops, fmt.Sprintf("request-event %d %s = %d", offset, edgeName(edge), fd))
	if k.OnRequestEvent != nil {
		k.OnRequestEvent(k, offset)
	}
	return fd, nil
}

// RequestOutput implements Kernel.
func (k *FakeKernel) RequestOutput(chip int, offset uint32, initial Level, label string) (int, error) {
	if k.RequestError != nil {
		k.Ops = append(k.Ops, fmt.Sprintf("request-output %d failed", offset))
		return -1, k.RequestError
	}
	if k.InvalidFd {
		k.Ops = append(k.Ops, fmt.Sprintf("request-output %d = 0", offset))
		return 0, nil
	}
	fd := k.alloc("line")
	k.Values[offset] = initial
	k.Ops = append(k.Ops, fmt.Sprintf("request-output %d %s = %d", offset, levelName(initial), fd))
	return fd, nil
}

// SetValue implements Kernel. The pin is recovered from the most recent
// output request, which is all a single-line handle ever holds.
func (k *FakeKernel) SetValue(line int, level Level) error {
	if k.SetError != nil {
		return k.SetError
	}
	if k.open[line] != "line" {
		return syscall.EBADF
	}
	k.Ops = append(k.Ops, fmt.Sprintf("set %d %s", line, levelName(level)))
	for pin := range k.Values {
		k.Values[pin] = level
	}
	return nil
}

// Poll implements Kernel. It never blocks: an empty event queue is reported
// as a timeout immediately.
func (k *FakeKernel) Poll(fd int, timeout time.Duration) (Readiness, error) {
	k.Timeouts = append(k.Timeouts, timeout)
	if k.PollError != nil {
		return NotReady, k.PollError
	}
	if k.open[fd] != "line" {
		return NotReady, syscall.EBADF
	}
	if k.PollFailed {
		return Failed, nil
	}
	if len(k.Events) == 0 {
		return NotReady, nil
	}
	return Readable, nil
}

// Read implements Kernel, encoding the next event as a gpioevent_data record.
func (k *FakeKernel) Read(fd int, buf []byte) (int, error) {
	if k.ReadError != nil {
		return 0, k.ReadError
	}
	if len(k.Events) == 0 {
		return 0, syscall.EAGAIN
	}
	ev := k.Events[0]
	k.Events = k.Events[1:]

	var rec [eventRecordSize]byte
	binary.NativeEndian.PutUint64(rec[0:8], uint64(ev.Time))
	switch ev.Edge {
	case RisingEdge:
		binary.NativeEndian.PutUint32(rec[8:12], eventRisingID)
	case FallingEdge:
		binary.NativeEndian.PutUint32(rec[8:12], eventFallingID)
	}
	n := copy(buf, rec[:])
	if k.ShortRead > 0 && k.ShortRead < n {
		n = k.ShortRead
	}
	return n, nil
}

// Close implements Kernel. Closing a descriptor that is not open fails with
// EBADF and is logged as such, which makes double closes visible in Ops.
func (k *FakeKernel) Close(fd int) error {
	if _, ok := k.open[fd]; !ok {
		k.Ops = append(k.Ops, fmt.Sprintf("close %d (not open)", fd))
		return syscall.EBADF
	}
	delete(k.open, fd)
	k.Ops = append(k.Ops, fmt.Sprintf("close %d", fd))
	return k.CloseError
}

// OpenFDs returns the descriptors currently open, in ascending order.
func (k *FakeKernel) OpenFDs() []int {
	fds := make([]int, 0, len(k.open))
	for fd := range k.open {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	return fds
}

// OpenLines returns the number of line descriptors currently open.
func (k *FakeKernel) OpenLines() int {
	n := 0
	for _, kind := range k.open {
		if kind == "line" {
			n++
		}
	}
	return n
}

// PeakLines returns the largest number of line descriptors that were open at
// the same time.
func (k *FakeKernel) PeakLines() int {
	return k.peakLines
}

// Reset clears the op log and recorded timeouts, keeping open descriptors.
func (k *FakeKernel) Reset() {
	k.Ops = nil
	k.Timeouts = nil
}

func edgeName(e Edge) string {
	switch e {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	case BothEdges:
		return "both"
	}
	return "none"
}

func levelName(l Level) string {
	if l {
		return "high"
	}
	return "low"
}
