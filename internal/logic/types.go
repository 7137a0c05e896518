// Package logic contains pure sampling policy for the sensor loop.
// This package has NO GPIO, MQTT or OS dependencies and never sleeps.
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/dht22-sensor/internal/errcode"
)

// Counts tracks poll outcomes since startup, one counter per failure kind.
type Counts struct {
	Readings            int `json:"readings"`
	Timeout             int `json:"timeout"`
	NoSensorDetected    int `json:"no_sensor_detected"`
	ProtocolError       int `json:"protocol_error"`
	ChecksumFailure     int `json:"checksum_failure"`
	IOError             int `json:"io_error"`
	ResourceUnavailable int `json:"resource_unavailable"`
}

// Failures returns the number of failed polls.
func (c Counts) Failures() int {
	return c.Timeout + c.NoSensorDetected + c.ProtocolError + c.ChecksumFailure + c.IOError + c.ResourceUnavailable
}

func (c *Counts) add(code errcode.Code) {
	switch code {
	case errcode.OK:
		c.Readings++
	case errcode.Timeout:
		c.Timeout++
	case errcode.NoSensorDetected:
		c.NoSensorDetected++
	case errcode.ProtocolError:
		c.ProtocolError++
	case errcode.ChecksumFailure:
		c.ChecksumFailure++
	case errcode.ResourceUnavailable:
		c.ResourceUnavailable++
	default:
		c.IOError++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp           time.Time
	Uptime              time.Duration
	Counts              Counts
	ConsecutiveFailures int
}
