package mqtt

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: "sensors/dht22/4/reading", payload: []byte{byte(i)}})
	}
}

func payloadBytes(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10, testLogger())
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferDrainInOrder(t *testing.T) {
	rb := newRingBuffer(10, testLogger())
	pushN(rb, 0, 5)

	got := payloadBytes(rb.drainAll())
	if string(got) != string([]byte{0, 1, 2, 3, 4}) {
		t.Errorf("expected oldest first, got %v", got)
	}

	// Second drain should be empty
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got))
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5, testLogger())

	// Push 8 items, buffer should keep the most recent 5 (3..7)
	pushN(rb, 0, 8)
	if rb.dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", rb.dropped)
	}

	got := payloadBytes(rb.drainAll())
	if string(got) != string([]byte{3, 4, 5, 6, 7}) {
		t.Errorf("expected [3 4 5 6 7], got %v", got)
	}
	if rb.dropped != 0 {
		t.Error("drain should reset the dropped count")
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5, testLogger())

	pushN(rb, 0, 3)
	if n := len(rb.drainAll()); n != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", n)
	}

	pushN(rb, 10, 14)
	got := payloadBytes(rb.drainAll())
	if string(got) != string([]byte{10, 11, 12, 13}) {
		t.Errorf("cycle 2: got %v", got)
	}
}

func TestRingBufferLen(t *testing.T) {
	rb := newRingBuffer(10, testLogger())
	if rb.len() != 0 {
		t.Errorf("expected len 0, got %d", rb.len())
	}

	pushN(rb, 0, 2)
	if rb.len() != 2 {
		t.Errorf("expected len 2, got %d", rb.len())
	}

	rb.drainAll()
	if rb.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", rb.len())
	}
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0, testLogger())
	pushN(rb, 0, 3)
	got := payloadBytes(rb.drainAll())
	if string(got) != string([]byte{2}) {
		t.Errorf("expected only the newest message, got %v", got)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10, testLogger())
	rb.push(bufferedMsg{
		topic:    "sensors/dht22/4/system",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "sensors/dht22/4/system" || string(got[0].payload) != `{"test":true}` ||
		got[0].qos != 1 || !got[0].retained {
		t.Errorf("fields not preserved: %+v", got[0])
	}
}
