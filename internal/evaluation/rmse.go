// Package evaluation scores filter output against ground truth (RMSE) and
// checks filter consistency with the normalised innovation squared (NIS).
package evaluation

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sensorfusion/internal/sensordata"
	"github.com/banshee-data/sensorfusion/internal/ukf"
)

// ErrLengthMismatch is returned by ComputeRMSE for unusable input.
var ErrLengthMismatch = errors.New("estimates and ground truth must be non-empty and equal length")

// Sample is a position/velocity vector [px, py, vx, vy].
type Sample [4]float64

// SampleFromState converts a CTRV state into Cartesian position and velocity.
func SampleFromState(x ukf.StateVector) Sample {
	return Sample{x.PX(), x.PY(), x.VX(), x.VY()}
}

// SampleFromGroundTruth extracts the comparable part of a ground truth record.
func SampleFromGroundTruth(gt sensordata.GroundTruth) Sample {
	return Sample{gt.PX, gt.PY, gt.VX, gt.VY}
}

// RMSE accumulates the root mean squared error per component.
type RMSE struct {
	sumSq Sample
	n     int
}

// Add accumulates one estimate/truth pair.
func (r *RMSE) Add(estimate, truth Sample) {
	var d Sample
	floats.SubTo(d[:], estimate[:], truth[:])
	floats.Mul(d[:], d[:])
	floats.Add(r.sumSq[:], d[:])
	r.n++
}

// Count returns the number of pairs seen.
func (r *RMSE) Count() int { return r.n }

// Value returns the current RMSE, or zeros before any pair was added.
func (r *RMSE) Value() Sample {
	var out Sample
	if r.n == 0 {
		return out
	}
	for i, s := range r.sumSq {
		out[i] = math.Sqrt(s / float64(r.n))
	}
	return out
}

// ComputeRMSE returns the RMSE over paired slices.
func ComputeRMSE(estimates, truth []Sample) (Sample, error) {
	if len(estimates) == 0 || len(estimates) != len(truth) {
		return Sample{}, ErrLengthMismatch
	}
	var r RMSE
	for i := range estimates {
		r.Add(estimates[i], truth[i])
	}
	return r.Value(), nil
}
