package logic

import "time"

// Back-off used by the command line tool. The sensor needs about two seconds
// between conversions, and repeated failures usually mean it needs longer.
const (
	DefaultMinInterval  = 2 * time.Second
	DefaultErrorBackoff = 500 * time.Millisecond
	DefaultMaxInterval  = 30 * time.Second
)

// Pacer spaces samples. The required gap after a sample is Min plus Step for
// every consecutive failure, capped at Max when Max > 0.
type Pacer struct {
	min  time.Duration
	step time.Duration
	max  time.Duration

	last     time.Time
	failures int
}

// NewPacer creates a Pacer. A zero min disables spacing after successes.
func NewPacer(min, step, max time.Duration) *Pacer {
	return &Pacer{min: min, step: step, max: max}
}

// Interval returns the gap currently required between samples.
func (p *Pacer) Interval() time.Duration {
	d := p.min + time.Duration(p.failures)*p.step
	if p.max > 0 && d > p.max {
		d = p.max
	}
	return d
}

// Delay returns how long to wait at now before taking the next sample.
// The first sample is never delayed.
func (p *Pacer) Delay(now time.Time) time.Duration {
	if p.last.IsZero() {
		return 0
	}
	wait := p.Interval() - now.Sub(p.last)
	if wait < 0 {
		return 0
	}
	return wait
}

// Record notes a sample taken at now.
func (p *Pacer) Record(now time.Time, ok bool) {
	p.last = now
	if ok {
		p.failures = 0
	} else {
		p.failures++
	}
}

// ConsecutiveFailures returns the number of failed samples since the last
// success.
func (p *Pacer) ConsecutiveFailures() int {
	return p.failures
}
