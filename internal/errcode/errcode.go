// Package errcode defines the failure kinds surfaced by the sensor stack.
//
// Kernel errors are translated into a Code at the GPIO boundary; callers above
// it only ever inspect codes, never raw errno values.
package errcode

import "errors"

// Code is a stable failure kind. It is a comparable string newtype and
// implements error, so a bare Code can be returned or matched with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK                  Code = "ok"
	ResourceUnavailable Code = "resource_unavailable"
	Timeout             Code = "timeout"
	NoSensorDetected    Code = "no_sensor_detected"
	ProtocolError       Code = "protocol_error"
	ChecksumFailure     Code = "checksum_failure"
	IOError             Code = "io_error"
)

// E carries a Code together with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }

// Is reports whether target is the Code of e.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Code returns the kind of e.
func (e *E) Code() Code { return e.C }

// New returns an *E without a cause.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap returns an *E with err as its cause. A nil err yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts the Code from anywhere in err's chain, defaulting to IOError for
// errors that were never classified.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return IOError
}

// Retryable reports whether a poll attempt that failed with err may be retried.
// Missing hardware and a line held by another consumer never recover within a
// single poll.
func Retryable(err error) bool {
	switch Of(err) {
	case ResourceUnavailable, NoSensorDetected, OK:
		return false
	}
	return true
}
