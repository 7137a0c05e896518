package gpio

import (
	"testing"
)

func TestFakeKernelDoubleCloseVisible(t *testing.T) {
	k := NewFakeKernel()
	fd, _ := k.OpenChip("/dev/gpiochip0")

	if err := k.Close(fd); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := k.Close(fd); err == nil {
		t.Error("expected an error closing a descriptor twice")
	}
	if k.Ops[len(k.Ops)-1] != "close 3 (not open)" {
		t.Errorf("double close not recorded: %q", k.Ops)
	}
}

func TestFakeKernelTracksPeakLines(t *testing.T) {
	k := NewFakeKernel()
	chip, _ := k.OpenChip("/dev/gpiochip0")
	a, _ := k.RequestEvent(chip, 1, BothEdges, "a")
	b, _ := k.RequestOutput(chip, 2, High, "b")
	k.Close(a)
	k.Close(b)

	if k.PeakLines() != 2 {
		t.Errorf("PeakLines: got %d, want 2", k.PeakLines())
	}
	if k.OpenLines() != 0 {
		t.Errorf("OpenLines: got %d, want 0", k.OpenLines())
	}
	if fds := k.OpenFDs(); len(fds) != 1 || fds[0] != chip {
		t.Errorf("OpenFDs: got %v", fds)
	}
}

func TestFakeKernelOnRequestEvent(t *testing.T) {
	k := NewFakeKernel()
	k.OnRequestEvent = func(k *FakeKernel, pin uint32) {
		k.Events = append(k.Events, EdgeEvent{Time: 5, Edge: FallingEdge})
	}
	h, err := Open("/dev/gpiochip0", 4, "t", WithKernel(k))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ev, err := h.WaitForEdge(0)
	if err != nil {
		t.Fatalf("WaitForEdge: %v", err)
	}
	if ev.Edge != FallingEdge || ev.Time != 5 {
		t.Errorf("event: got %+v", ev)
	}
}
