package errcode

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestWrapIsCode(t *testing.T) {
	err := Wrap(Timeout, "gpio.WaitForEdge", syscall.EAGAIN)
	if !errors.Is(err, Timeout) {
		t.Errorf("expected errors.Is(err, Timeout), got %v", err)
	}
	if errors.Is(err, IOError) {
		t.Error("wrapped Timeout should not match IOError")
	}
	if !errors.Is(err, syscall.EAGAIN) {
		t.Error("cause should remain reachable through Unwrap")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(IOError, "op", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestOfThroughFmtWrapping(t *testing.T) {
	inner := New(ChecksumFailure, "dht.Poll", "sum 0x12 != 0x13")
	outer := fmt.Errorf("read sensor: %w", inner)
	if got := Of(outer); got != ChecksumFailure {
		t.Errorf("Of: got %s, want %s", got, ChecksumFailure)
	}
}

func TestOfBareCode(t *testing.T) {
	if got := Of(fmt.Errorf("x: %w", NoSensorDetected)); got != NoSensorDetected {
		t.Errorf("Of: got %s, want %s", got, NoSensorDetected)
	}
}

func TestOfUnclassified(t *testing.T) {
	if got := Of(errors.New("boom")); got != IOError {
		t.Errorf("Of: got %s, want %s", got, IOError)
	}
	if got := Of(nil); got != OK {
		t.Errorf("Of(nil): got %s, want %s", got, OK)
	}
}

func TestErrorString(t *testing.T) {
	err := &E{C: ProtocolError, Op: "gpio.ConfigureInput", Msg: "invalid descriptor", Err: syscall.EINVAL}
	want := "gpio.ConfigureInput: protocol_error: invalid descriptor: " + syscall.EINVAL.Error()
	if err.Error() != want {
		t.Errorf("Error(): got %q, want %q", err.Error(), want)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(ChecksumFailure, "", ""), true},
		{New(ProtocolError, "", ""), true},
		{New(Timeout, "", ""), true},
		{New(IOError, "", ""), true},
		{New(NoSensorDetected, "", ""), false},
		{New(ResourceUnavailable, "", ""), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v): got %v, want %v", tt.err, got, tt.want)
		}
	}
}
