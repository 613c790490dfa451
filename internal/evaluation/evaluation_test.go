package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorfusion/internal/sensordata"
	"github.com/banshee-data/sensorfusion/internal/ukf"
)

func TestRMSEAccumulator(t *testing.T) {
	t.Parallel()

	var r RMSE
	assert.Equal(t, Sample{}, r.Value(), "empty accumulator reports zeros")

	r.Add(Sample{1, 2, 3, 4}, Sample{0, 2, 3, 4})
	r.Add(Sample{1, 2, 3, 4}, Sample{2, 2, 3, 6})

	assert.Equal(t, 2, r.Count())
	assert.InDeltaSlice(t, []float64{1, 0, 0, math.Sqrt(2)}, func() []float64 { v := r.Value(); return v[:] }(), 1e-12)
}

func TestComputeRMSE(t *testing.T) {
	t.Parallel()

	got, err := ComputeRMSE(
		[]Sample{{1, 1, 1, 1}, {3, 3, 3, 3}},
		[]Sample{{0, 0, 0, 0}, {0, 0, 0, 0}},
	)
	require.NoError(t, err)
	want := math.Sqrt(5)
	assert.InDeltaSlice(t, []float64{want, want, want, want}, got[:], 1e-12)

	_, err = ComputeRMSE(nil, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = ComputeRMSE([]Sample{{}}, []Sample{{}, {}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSampleConversions(t *testing.T) {
	t.Parallel()

	s := SampleFromState(ukf.StateVector{1, 2, 2, math.Pi / 2, 0})
	assert.InDeltaSlice(t, []float64{1, 2, 0, 2}, s[:], 1e-12)

	g := SampleFromGroundTruth(sensordata.GroundTruth{PX: 1, PY: 2, VX: 3, VY: 4, HasYaw: true, Yaw: 9})
	assert.Equal(t, Sample{1, 2, 3, 4}, g)
}

func TestNISThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		kind       ukf.SensorKind
		confidence float64
		want       float64
	}{
		{"laser 95", ukf.SensorLaser, 0.95, 5.991},
		{"radar 95", ukf.SensorRadar, 0.95, 7.815},
		{"laser 5", ukf.SensorLaser, 0.05, 0.103},
		{"radar 5", ukf.SensorRadar, 0.05, 0.352},
		{"unknown", ukf.SensorUnknown, 0.95, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NISThreshold(tt.kind, tt.confidence), 1e-3)
		})
	}
}

func TestNISMonitorStats(t *testing.T) {
	t.Parallel()

	m := NewNISMonitor(0.95)
	for _, v := range []float64{1, 2, 3, 10} {
		m.Add(ukf.SensorLaser, v)
	}
	m.Add(ukf.SensorRadar, 1)
	m.Add(ukf.SensorUnknown, 100)

	laser := m.Stats(ukf.SensorLaser)
	assert.Equal(t, 4, laser.Count)
	assert.InDelta(t, 4.0, laser.Mean, 1e-12)
	assert.Equal(t, 1, laser.AboveThreshold)
	assert.InDelta(t, 0.25, laser.FractionAbove, 1e-12)
	assert.False(t, laser.Consistent(m.Confidence()))

	radar := m.Stats(ukf.SensorRadar)
	assert.Equal(t, 1, radar.Count)
	assert.Equal(t, 0, radar.AboveThreshold)
	assert.True(t, radar.Consistent(0.95))

	assert.Empty(t, m.Samples(ukf.SensorUnknown))
	assert.Equal(t, []float64{1, 2, 3, 10}, m.Samples(ukf.SensorLaser))
	assert.True(t, m.Stats(ukf.SensorUnknown).Consistent(0.95))
}
