package dht

import "iter"

// Readings returns an endless sequence of Poll results. It stops only when
// the consumer stops ranging; failed polls are yielded, not terminal.
//
//	for r, err := range dev.Readings() {
//		...
//	}
func (d *Device) Readings() iter.Seq2[Reading, error] {
	return func(yield func(Reading, error) bool) {
		for {
			if !yield(d.Poll()) {
				return
			}
		}
	}
}
