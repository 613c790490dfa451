package ukf

import "math"

// NormalizeAngle wraps a into (-π, π]. Non-finite input is returned as is.
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return a
	}
	r := math.Remainder(a, 2*math.Pi)
	if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}
