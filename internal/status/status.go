// Package status provides a thread-safe status tracker for the dht22 daemon.
// It is read when building MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/dht22-sensor/internal/dht"
	"github.com/sweeney/dht22-sensor/internal/errcode"
	"github.com/sweeney/dht22-sensor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Chip        string
	Pin         int
	IntervalMs  int64
	HeartbeatMs int64
	MaxAttempts int
	Broker      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Reading             dht.Reading
	ReadingAt           time.Time // zero until the first successful poll
	LastError           errcode.Code
	Counts              logic.Counts
	ConsecutiveFailures int
	StartTime           time.Time
	Now                 time.Time
	MQTTConnected       bool
	Config              Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// HasReading reports whether any poll has succeeded yet.
func (s Snapshot) HasReading() bool {
	return !s.ReadingAt.IsZero()
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record stores the outcome of a poll. A failed poll keeps the previous
// reading. Called from runLoop after every poll.
func (t *Tracker) Record(now time.Time, r dht.Reading, err error, tally *logic.Tally) {
	t.mu.Lock()
	if err == nil {
		t.snap.Reading = r
		t.snap.ReadingAt = now
		t.snap.LastError = ""
	} else {
		t.snap.LastError = errcode.Of(err)
	}
	t.snap.Counts = tally.Counts()
	t.snap.ConsecutiveFailures = tally.ConsecutiveFailures()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
