package logic

import (
	"time"

	"github.com/sweeney/dht22-sensor/internal/errcode"
)

// Tally counts poll outcomes and decides when a heartbeat is due.
type Tally struct {
	startTime     time.Time
	lastHeartbeat time.Time
	lastSample    time.Time
	lastSuccess   time.Time
	sampled       bool
	counts        Counts
	consecutive   int
}

// NewTally creates a Tally. The startTime is used for calculating uptime in
// heartbeat events.
func NewTally(startTime time.Time) *Tally {
	return &Tally{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Record notes the outcome of a poll completed at now. A nil err is a
// successful reading; anything else is counted under its error kind.
func (t *Tally) Record(now time.Time, err error) errcode.Code {
	code := errcode.Of(err)
	t.counts.add(code)
	t.sampled = true
	t.lastSample = now
	if code == errcode.OK {
		t.lastSuccess = now
		t.consecutive = 0
	} else {
		t.consecutive++
	}
	return code
}

// Counts returns a copy of the outcome counters.
func (t *Tally) Counts() Counts {
	return t.counts
}

// ConsecutiveFailures returns the number of failed polls since the last
// successful one.
func (t *Tally) ConsecutiveFailures() int {
	return t.consecutive
}

// LastSuccess returns the time of the last successful poll, or the zero time.
func (t *Tally) LastSuccess() time.Time {
	return t.lastSuccess
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil before the first poll has been
// recorded, if the interval has not elapsed, or if interval is <= 0 (disabled).
func (t *Tally) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !t.sampled {
		return nil
	}

	if now.Sub(t.lastHeartbeat) < interval {
		return nil
	}

	t.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp:           now,
		Uptime:              now.Sub(t.startTime),
		Counts:              t.counts,
		ConsecutiveFailures: t.consecutive,
	}
}
