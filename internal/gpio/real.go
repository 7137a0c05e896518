//go:build linux

package gpio

import (
	"time"

	"github.com/warthog618/go-gpiocdev/uapi"
	"golang.org/x/sys/unix"
)

// sysKernel talks to the GPIO character device using the v1 uAPI.
type sysKernel struct{}

func defaultKernel() Kernel { return sysKernel{} }

func (sysKernel) OpenChip(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
}

func (sysKernel) RequestEvent(chip int, offset uint32, edge Edge, label string) (int, error) {
	er := uapi.EventRequest{
		Offset:      offset,
		HandleFlags: uapi.HandleRequestInput,
		EventFlags:  eventFlags(edge),
	}
	copy(er.Consumer[:len(er.Consumer)-1], label)
	if err := uapi.GetLineEvent(uintptr(chip), &er); err != nil {
		return -1, err
	}
	return int(er.Fd), nil
}

func (sysKernel) RequestOutput(chip int, offset uint32, initial Level, label string) (int, error) {
	hr := uapi.HandleRequest{
		Lines: 1,
		Flags: uapi.HandleRequestOutput,
	}
	hr.Offsets[0] = offset
	if initial {
		hr.DefaultValues[0] = 1
	}
	copy(hr.Consumer[:len(hr.Consumer)-1], label)
	if err := uapi.GetLineHandle(uintptr(chip), &hr); err != nil {
		return -1, err
	}
	return int(hr.Fd), nil
}

func (sysKernel) SetValue(line int, level Level) error {
	var hd uapi.HandleData
	if level {
		hd[0] = 1
	}
	return uapi.SetLineValues(uintptr(line), hd)
}

func (sysKernel) Poll(fd int, timeout time.Duration) (Readiness, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	// ppoll writes the remaining time back into ts, so a restart after EINTR
	// keeps the original deadline.
	ts := unix.NsecToTimespec(int64(timeout))
	for {
		n, err := unix.Ppoll(fds, &ts, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return NotReady, err
		}
		if n == 0 {
			return NotReady, nil
		}
		break
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return Failed, nil
	}
	if fds[0].Revents&unix.POLLIN == 0 {
		return Failed, nil
	}
	return Readable, nil
}

func (sysKernel) Read(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func (sysKernel) Close(fd int) error {
	return unix.Close(fd)
}

func eventFlags(edge Edge) uapi.EventFlag {
	switch edge {
	case RisingEdge:
		return uapi.EventRequestRisingEdge
	case FallingEdge:
		return uapi.EventRequestFallingEdge
	}
	return uapi.EventRequestBothEdges
}
