package dht

import (
	"fmt"

	"github.com/sweeney/dht22-sensor/internal/errcode"
)

// FrameBits is the number of data bits the sensor sends per reading.
const FrameBits = 40

// Frame is one transmission: humidity high/low, temperature high/low and an
// additive checksum. Bits are filled most significant first.
type Frame [5]byte

// SetBit sets or clears bit i, counted from the most significant bit of the
// first byte.
func (f *Frame) SetBit(i int, one bool) {
	mask := byte(0x80) >> (i % 8)
	if one {
		f[i/8] |= mask
	} else {
		f[i/8] &^= mask
	}
}

// Bit reports whether bit i is set.
func (f Frame) Bit(i int) bool {
	return f[i/8]&(byte(0x80)>>(i%8)) != 0
}

// Checksum is the low byte of the sum of the four payload bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the transmitted checksum matches the payload.
func (f Frame) Valid() bool {
	return f.Checksum() == f[4]
}

// Decode converts a valid frame into a Reading. Values are not range checked;
// the sensor is trusted once the checksum matches.
func (f Frame) Decode() (Reading, error) {
	if !f.Valid() {
		return Reading{}, errcode.New(errcode.ChecksumFailure, "dht.Decode",
			fmt.Sprintf("frame % x: sum %#02x, transmitted %#02x", f[:], f.Checksum(), f[4]))
	}

	humidity := uint16(f[0])<<8 | uint16(f[1])
	temp := uint16(f[2])<<8 | uint16(f[3])

	r := Reading{
		Humidity:    float64(humidity) / 10,
		Temperature: float64(temp&0x7FFF) / 10,
	}
	// Sign and magnitude, not two's complement.
	if temp&0x8000 != 0 {
		r.Temperature = -r.Temperature
	}
	return r, nil
}
