package dht

import (
	"fmt"
	"math"

	"periph.io/x/conn/v3/physic"
)

// Reading is one decoded measurement, with a resolution of one tenth.
type Reading struct {
	// Humidity is relative humidity in percent.
	Humidity float64
	// Temperature is in degrees Celsius.
	Temperature float64
}

func (r Reading) String() string {
	return fmt.Sprintf("RH: %.1f%%, %.1fC", r.Humidity, r.Temperature)
}

// Env converts the reading to periph's physical units. Pressure is left zero.
func (r Reading) Env() physic.Env {
	tenthsC := physic.Temperature(math.Round(r.Temperature * 10))
	tenthsRH := physic.RelativeHumidity(math.Round(r.Humidity * 10))
	return physic.Env{
		Temperature: physic.ZeroCelsius + tenthsC*100*physic.MilliCelsius,
		Humidity:    tenthsRH * physic.PercentRH / 10,
	}
}
