package dht

import "time"

// Bit is the classification of one data pulse.
type Bit int

const (
	BitInvalid Bit = iota
	BitZero
	BitOne
)

func (b Bit) String() string {
	switch b {
	case BitZero:
		return "0"
	case BitOne:
		return "1"
	}
	return "invalid"
}

// High-pulse windows for a data bit. The sensor nominally holds the line high
// for 26-28µs for a zero and 70µs for a one.
const (
	ZeroMin = 10 * time.Microsecond
	ZeroMax = 40 * time.Microsecond
	OneMin  = 55 * time.Microsecond
	OneMax  = 90 * time.Microsecond
)

// Classify maps the duration the line was held high to a bit. Both windows
// are inclusive; anything between or outside them is BitInvalid.
func Classify(high time.Duration) Bit {
	switch {
	case high >= ZeroMin && high <= ZeroMax:
		return BitZero
	case high >= OneMin && high <= OneMax:
		return BitOne
	}
	return BitInvalid
}
