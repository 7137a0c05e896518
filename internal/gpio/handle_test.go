package gpio

import (
	"errors"
	"reflect"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/dht22-sensor/internal/errcode"
)

func openFake(t *testing.T, pin int) (*LineHandle, *FakeKernel) {
	t.Helper()
	k := NewFakeKernel()
	h, err := Open("/dev/gpiochip9", pin, "test", WithKernel(k))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return h, k
}

func assertOps(t *testing.T, k *FakeKernel, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(k.Ops, want) {
		t.Errorf("ops:\n got  %q\n want %q", k.Ops, want)
	}
}

func TestOpen(t *testing.T) {
	h, k := openFake(t, 12)

	if h.Pin() != 12 {
		t.Errorf("Pin(): got %d, want 12", h.Pin())
	}
	if h.Chip() != "/dev/gpiochip9" {
		t.Errorf("Chip(): got %q", h.Chip())
	}
	if h.Direction() != Unconfigured {
		t.Errorf("new handle should be unconfigured, got %s", h.Direction())
	}
	assertOps(t, k, "open /dev/gpiochip9 = 3")
}

func TestOpenFailure(t *testing.T) {
	k := NewFakeKernel()
	k.OpenError = syscall.ENOENT

	h, err := Open("/dev/nope", 1, "test", WithKernel(k))
	if h != nil {
		t.Error("expected nil handle on failure")
	}
	if !errors.Is(err, errcode.ResourceUnavailable) {
		t.Errorf("expected ResourceUnavailable, got %v", err)
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
}

func TestOpenInvalidPin(t *testing.T) {
	k := NewFakeKernel()
	_, err := Open("/dev/gpiochip0", -1, "test", WithKernel(k))
	if !errors.Is(err, errcode.ResourceUnavailable) {
		t.Errorf("expected ResourceUnavailable, got %v", err)
	}
	if len(k.Ops) != 0 {
		t.Errorf("expected no I/O for an invalid pin, got %q", k.Ops)
	}
}

func TestLabelTruncated(t *testing.T) {
	k := NewFakeKernel()
	long := strings.Repeat("x", 40)
	h, err := Open("/dev/gpiochip0", 1, long, WithKernel(k))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Label()) != 31 {
		t.Errorf("label length: got %d, want 31", len(h.Label()))
	}
}

func TestReconfigureClosesPreviousLineFirst(t *testing.T) {
	h, k := openFake(t, 12)

	if err := h.ConfigureInput(BothEdges); err != nil {
		t.Fatalf("ConfigureInput: %v", err)
	}
	if h.Direction() != Input {
		t.Errorf("expected input, got %s", h.Direction())
	}
	if err := h.ConfigureOutput(Low); err != nil {
		t.Fatalf("ConfigureOutput: %v", err)
	}
	if h.Direction() != Output {
		t.Errorf("expected output, got %s", h.Direction())
	}

	assertOps(t, k,
		"open /dev/gpiochip9 = 3",
		"request-event 12 both = 4",
		"close 4",
		"request-output 12 low = 5",
	)
	if k.PeakLines() != 1 {
		t.Errorf("expected at most one open line descriptor, peak was %d", k.PeakLines())
	}
	if k.OpenLines() != 1 {
		t.Errorf("expected exactly one open line descriptor, got %d", k.OpenLines())
	}
}

func TestRequestBusyIsResourceUnavailable(t *testing.T) {
	h, k := openFake(t, 5)
	k.RequestError = syscall.EBUSY

	err := h.ConfigureOutput(High)
	if !errors.Is(err, errcode.ResourceUnavailable) {
		t.Errorf("expected ResourceUnavailable, got %v", err)
	}
	if h.Direction() != Unconfigured {
		t.Errorf("failed request should leave handle unconfigured, got %s", h.Direction())
	}
}

func TestRequestRejectedIsProtocolError(t *testing.T) {
	h, k := openFake(t, 5)
	k.RequestError = syscall.EINVAL

	if err := h.ConfigureInput(RisingEdge); !errors.Is(err, errcode.ProtocolError) {
		t.Errorf("expected ProtocolError, got %v", err)
	}
	if err := h.ConfigureOutput(Low); !errors.Is(err, errcode.ProtocolError) {
		t.Errorf("expected ProtocolError, got %v", err)
	}
}

func TestRequestInvalidDescriptor(t *testing.T) {
	h, k := openFake(t, 5)
	k.InvalidFd = true

	if err := h.ConfigureInput(FallingEdge); !errors.Is(err, errcode.ProtocolError) {
		t.Errorf("expected ProtocolError, got %v", err)
	}
	if h.Direction() != Unconfigured {
		t.Errorf("expected unconfigured, got %s", h.Direction())
	}
}

func TestConfigureInputRequiresEdge(t *testing.T) {
	h, k := openFake(t, 5)
	k.Reset()

	if err := h.ConfigureInput(NoEdge); !errors.Is(err, errcode.ProtocolError) {
		t.Errorf("expected ProtocolError, got %v", err)
	}
	if len(k.Ops) != 0 {
		t.Errorf("expected no requests, got %q", k.Ops)
	}
}

func TestWaitForEdgeTimeoutZero(t *testing.T) {
	h, k := openFake(t, 7)

	_, err := h.WaitForEdge(0)
	if !errors.Is(err, errcode.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if len(k.Timeouts) != 1 || k.Timeouts[0] != 0 {
		t.Errorf("expected a single zero-timeout poll, got %v", k.Timeouts)
	}
}

func TestWaitForEdgeNegativeTimeoutIsZero(t *testing.T) {
	h, k := openFake(t, 7)

	if _, err := h.WaitForEdge(-time.Second); !errors.Is(err, errcode.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if k.Timeouts[0] != 0 {
		t.Errorf("expected timeout clamped to 0, got %v", k.Timeouts[0])
	}
}

func TestWaitForEdgeConfiguresInputWithLastEdge(t *testing.T) {
	h, k := openFake(t, 7)

	if err := h.ConfigureInput(RisingEdge); err != nil {
		t.Fatalf("ConfigureInput: %v", err)
	}
	if err := h.SetLevel(High); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	k.Reset()
	k.Events = []EdgeEvent{{Time: 1500, Edge: RisingEdge}}

	ev, err := h.WaitForEdge(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForEdge: %v", err)
	}
	if ev.Edge != RisingEdge || ev.Time != 1500 {
		t.Errorf("event: got %+v", ev)
	}
	assertOps(t, k,
		"close 5",
		"request-event 7 rising = 6",
	)
}

func TestWaitForEdgeDefaultsToBothEdges(t *testing.T) {
	h, k := openFake(t, 2)
	k.Events = []EdgeEvent{{Time: 10, Edge: FallingEdge}, {Time: 20, Edge: RisingEdge}}

	first, err := h.WaitForEdge(time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForEdge: %v", err)
	}
	second, err := h.WaitForEdge(time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForEdge: %v", err)
	}
	if first.Edge != FallingEdge || second.Edge != RisingEdge {
		t.Errorf("edges: got %v then %v", first.Edge, second.Edge)
	}
	if second.Time-first.Time != 10 {
		t.Errorf("interval: got %v, want 10ns", second.Time-first.Time)
	}
	if k.Ops[1] != "request-event 2 both = 4" {
		t.Errorf("expected a both-edge request, got %q", k.Ops[1])
	}
}

func TestWaitForEdgeShortRead(t *testing.T) {
	h, k := openFake(t, 2)
	k.Events = []EdgeEvent{{Time: 10, Edge: FallingEdge}}
	k.ShortRead = 12

	if _, err := h.WaitForEdge(time.Millisecond); !errors.Is(err, errcode.IOError) {
		t.Errorf("expected IOError, got %v", err)
	}
}

func TestWaitForEdgeReadError(t *testing.T) {
	h, k := openFake(t, 2)
	k.Events = []EdgeEvent{{Time: 10, Edge: FallingEdge}}
	k.ReadError = syscall.EIO

	if _, err := h.WaitForEdge(time.Millisecond); !errors.Is(err, errcode.IOError) {
		t.Errorf("expected IOError, got %v", err)
	}
}

func TestWaitForEdgePollErrorCondition(t *testing.T) {
	h, k := openFake(t, 2)
	k.PollFailed = true

	if _, err := h.WaitForEdge(time.Millisecond); !errors.Is(err, errcode.IOError) {
		t.Errorf("expected IOError, got %v", err)
	}
}

func TestWaitForEdgeUnknownEventID(t *testing.T) {
	h, k := openFake(t, 2)
	k.Events = []EdgeEvent{{Time: 10, Edge: NoEdge}}

	if _, err := h.WaitForEdge(time.Millisecond); !errors.Is(err, errcode.ProtocolError) {
		t.Errorf("expected ProtocolError, got %v", err)
	}
}

func TestSetLevel(t *testing.T) {
	h, k := openFake(t, 3)

	if err := h.SetLevel(true); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if k.Values[3] != High {
		t.Error("expected pin 3 high")
	}
	if err := h.SetLevel(false); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if err := h.SetLevel(false); err != nil {
		t.Fatalf("SetLevel twice: %v", err)
	}
	if k.Values[3] != Low {
		t.Error("expected pin 3 low")
	}

	assertOps(t, k,
		"open /dev/gpiochip9 = 3",
		"request-output 3 high = 4",
		"set 4 high",
		"set 4 low",
		"set 4 low",
	)
}

func TestSetLevelFailure(t *testing.T) {
	h, k := openFake(t, 3)
	k.SetError = syscall.EIO

	if err := h.SetLevel(High); !errors.Is(err, errcode.IOError) {
		t.Errorf("expected IOError, got %v", err)
	}
}

func TestCloseReleasesLineBeforeChip(t *testing.T) {
	h, k := openFake(t, 3)
	if err := h.SetLevel(High); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	k.Reset()

	if err := h.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
	assertOps(t, k, "close 4", "close 3")
	if len(k.OpenFDs()) != 0 {
		t.Errorf("leaked descriptors: %v", k.OpenFDs())
	}

	// Second close is a no-op.
	k.Reset()
	h.Close()
	if len(k.Ops) != 0 {
		t.Errorf("second Close performed I/O: %q", k.Ops)
	}
}

func TestCloseErrorsAreSwallowed(t *testing.T) {
	h, k := openFake(t, 3)
	if err := h.ConfigureInput(BothEdges); err != nil {
		t.Fatalf("ConfigureInput: %v", err)
	}
	k.CloseError = syscall.EIO

	if err := h.Close(); err != nil {
		t.Errorf("Close should not propagate teardown failures, got %v", err)
	}
	if len(k.OpenFDs()) != 0 {
		t.Errorf("descriptors still open: %v", k.OpenFDs())
	}
}

func TestMoveLeavesSourceInert(t *testing.T) {
	h, k := openFake(t, 8)
	if err := h.ConfigureInput(FallingEdge); err != nil {
		t.Fatalf("ConfigureInput: %v", err)
	}

	moved := h.Move()
	k.Reset()

	h.Close()
	if len(k.Ops) != 0 {
		t.Errorf("closing the moved-from handle performed I/O: %q", k.Ops)
	}
	if h.Direction() != Unconfigured {
		t.Errorf("moved-from handle should be unconfigured, got %s", h.Direction())
	}

	if moved.Direction() != Input || moved.Pin() != 8 {
		t.Errorf("moved handle lost state: dir=%s pin=%d", moved.Direction(), moved.Pin())
	}
	moved.Close()
	assertOps(t, k, "close 4", "close 3")
}

func TestClosedHandleCannotBeConfigured(t *testing.T) {
	h, _ := openFake(t, 8)
	h.Close()

	if err := h.ConfigureInput(BothEdges); !errors.Is(err, errcode.ResourceUnavailable) {
		t.Errorf("expected ResourceUnavailable, got %v", err)
	}
	if err := h.SetLevel(High); !errors.Is(err, errcode.ResourceUnavailable) {
		t.Errorf("expected ResourceUnavailable, got %v", err)
	}
}
