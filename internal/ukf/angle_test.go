package ukf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAngle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"inside range", 1.0, 1.0},
		{"just above pi", 3.2, 3.2 - 2*math.Pi},
		{"pi stays pi", math.Pi, math.Pi},
		{"minus pi maps to pi", -math.Pi, math.Pi},
		{"several turns", 7*math.Pi + 0.5, -math.Pi + 0.5},
		{"negative wrap", -3 * math.Pi / 2, math.Pi / 2},
		{"large negative", -20.0, -20.0 + 6*math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAngle(tt.in)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Greater(t, got, -math.Pi)
			assert.LessOrEqual(t, got, math.Pi)
		})
	}
}

func TestNormalizeAngleBearingResidual(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, -3.0832, NormalizeAngle(3.2), 1e-4)
}

func TestNormalizeAngleNonFinite(t *testing.T) {
	t.Parallel()
	assert.True(t, math.IsNaN(NormalizeAngle(math.NaN())))
	assert.True(t, math.IsInf(NormalizeAngle(math.Inf(1)), 1))
}
