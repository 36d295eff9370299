package sensor

import (
	"math/rand"
	"time"
)

// Reading is a single environmental sample. It is a value type and is
// never mutated after creation.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// Generation and clamp bounds. Values are drawn from the base range,
// jittered, then clamped to the hard range.
const (
	TempBaseMin = 20.0
	TempBaseMax = 35.0
	TempJitter  = 0.25
	TempMin     = 15.0
	TempMax     = 40.0

	HumidityBaseMin = 40.0
	HumidityBaseMax = 80.0
	HumidityJitter  = 1.0
	HumidityMin     = 30.0
	HumidityMax     = 90.0
)

// newReading draws a plausible sample for the given instant.
func newReading(ts time.Time) Reading {
	temp := TempBaseMin + rand.Float64()*(TempBaseMax-TempBaseMin)
	hum := HumidityBaseMin + rand.Float64()*(HumidityBaseMax-HumidityBaseMin)

	temp += (rand.Float64()*2 - 1) * TempJitter
	hum += (rand.Float64()*2 - 1) * HumidityJitter

	return Reading{
		Temperature: clamp(temp, TempMin, TempMax),
		Humidity:    clamp(hum, HumidityMin, HumidityMax),
		Timestamp:   ts,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
