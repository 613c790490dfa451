package ukf

import (
	"fmt"
	"math"
)

// SensorKind identifies which sensor produced a reading.
type SensorKind int

const (
	SensorUnknown SensorKind = iota
	SensorLaser              // position-only: px, py
	SensorRadar              // range, bearing, range rate
)

// String returns the short name used in logs and stored estimates.
func (k SensorKind) String() string {
	switch k {
	case SensorLaser:
		return "laser"
	case SensorRadar:
		return "radar"
	default:
		return "unknown"
	}
}

// Reading is the sensor-specific payload of a Measurement. The only
// implementations are PositionReading and RangeBearingReading.
type Reading interface {
	Kind() SensorKind
	vector() []float64
}

// PositionReading is a Cartesian position from the laser sensor (metres).
type PositionReading struct {
	X float64
	Y float64
}

func (PositionReading) Kind() SensorKind { return SensorLaser }

func (r PositionReading) vector() []float64 { return []float64{r.X, r.Y} }

// RangeBearingReading is a polar reading from the radar sensor.
type RangeBearingReading struct {
	Range     float64 // metres
	Bearing   float64 // radians, measured from the x axis
	RangeRate float64 // m/s, positive when moving away
}

func (RangeBearingReading) Kind() SensorKind { return SensorRadar }

func (r RangeBearingReading) vector() []float64 {
	return []float64{r.Range, r.Bearing, r.RangeRate}
}

// Cartesian converts the polar position to x/y.
func (r RangeBearingReading) Cartesian() (x, y float64) {
	return r.Range * math.Cos(r.Bearing), r.Range * math.Sin(r.Bearing)
}

// Measurement is one timestamped sensor reading.
type Measurement struct {
	TimestampUS int64 // microseconds, non-decreasing across calls
	Reading     Reading
}

// Kind returns the sensor kind of the reading, or SensorUnknown when the
// reading is missing.
func (m Measurement) Kind() SensorKind {
	if m.Reading == nil {
		return SensorUnknown
	}
	return m.Reading.Kind()
}

func (m Measurement) String() string {
	switch r := m.Reading.(type) {
	case PositionReading:
		return fmt.Sprintf("laser t=%d x=%.4f y=%.4f", m.TimestampUS, r.X, r.Y)
	case RangeBearingReading:
		return fmt.Sprintf("radar t=%d rho=%.4f phi=%.4f rho_dot=%.4f", m.TimestampUS, r.Range, r.Bearing, r.RangeRate)
	default:
		return fmt.Sprintf("unknown t=%d", m.TimestampUS)
	}
}
