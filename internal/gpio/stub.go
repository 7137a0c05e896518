//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// sysKernel is not available on non-Linux platforms.
type sysKernel struct{}

func defaultKernel() Kernel { return sysKernel{} }

func (sysKernel) OpenChip(string) (int, error) { return -1, errUnsupported }

func (sysKernel) RequestEvent(int, uint32, Edge, string) (int, error) { return -1, errUnsupported }

func (sysKernel) RequestOutput(int, uint32, Level, string) (int, error) { return -1, errUnsupported }

func (sysKernel) SetValue(int, Level) error { return errUnsupported }

func (sysKernel) Poll(int, time.Duration) (Readiness, error) { return NotReady, errUnsupported }

func (sysKernel) Read(int, []byte) (int, error) { return 0, errUnsupported }

func (sysKernel) Close(int) error { return nil }
