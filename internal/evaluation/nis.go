package evaluation

import (
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/sensorfusion/internal/ukf"
)

// MeasurementDOF returns the measurement dimension of a sensor, which is the
// degrees of freedom of its NIS distribution.
func MeasurementDOF(kind ukf.SensorKind) int {
	switch kind {
	case ukf.SensorLaser:
		return 2
	case ukf.SensorRadar:
		return 3
	default:
		return 0
	}
}

// NISThreshold returns the chi-square quantile at confidence for the
// sensor's measurement dimension, e.g. 5.991 for laser at 0.95.
func NISThreshold(kind ukf.SensorKind, confidence float64) float64 {
	dof := MeasurementDOF(kind)
	if dof == 0 {
		return 0
	}
	return distuv.ChiSquared{K: float64(dof)}.Quantile(confidence)
}

// NISStats summarises the NIS samples of one sensor.
type NISStats struct {
	Sensor         ukf.SensorKind
	Count          int
	Mean           float64
	Threshold      float64
	AboveThreshold int
	FractionAbove  float64
}

// Consistent reports whether the share of samples above the threshold is
// no larger than expected at the configured confidence, with a small
// allowance for sampling noise.
func (s NISStats) Consistent(confidence float64) bool {
	if s.Count == 0 {
		return true
	}
	return s.FractionAbove <= 2*(1-confidence)
}

// NISMonitor collects NIS samples per sensor. Not safe for concurrent use.
type NISMonitor struct {
	confidence float64
	samples    map[ukf.SensorKind][]float64
}

// NewNISMonitor creates a monitor using the given chi-square confidence.
func NewNISMonitor(confidence float64) *NISMonitor {
	return &NISMonitor{
		confidence: confidence,
		samples:    make(map[ukf.SensorKind][]float64),
	}
}

// Confidence returns the configured confidence level.
func (m *NISMonitor) Confidence() float64 { return m.confidence }

// Add records one NIS value. Unknown sensors are ignored.
func (m *NISMonitor) Add(kind ukf.SensorKind, nis float64) {
	if MeasurementDOF(kind) == 0 {
		return
	}
	m.samples[kind] = append(m.samples[kind], nis)
}

// Samples returns a copy of the NIS values recorded for kind.
func (m *NISMonitor) Samples(kind ukf.SensorKind) []float64 {
	return append([]float64(nil), m.samples[kind]...)
}

// Stats returns the summary for kind.
func (m *NISMonitor) Stats(kind ukf.SensorKind) NISStats {
	vals := m.samples[kind]
	st := NISStats{
		Sensor:    kind,
		Count:     len(vals),
		Threshold: NISThreshold(kind, m.confidence),
	}
	if len(vals) == 0 {
		return st
	}
	st.Mean = stat.Mean(vals, nil)
	for _, v := range vals {
		if v > st.Threshold {
			st.AboveThreshold++
		}
	}
	st.FractionAbove = float64(st.AboveThreshold) / float64(len(vals))
	return st
}
