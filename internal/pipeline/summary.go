package pipeline

import (
	"fmt"
	"io"

	"github.com/banshee-data/sensorfusion/internal/evaluation"
	"github.com/banshee-data/sensorfusion/internal/ukf"
	"github.com/banshee-data/sensorfusion/internal/units"
)

// Summary describes a completed or in-progress run.
type Summary struct {
	Estimates     int
	ParseErrors   int
	SinkErrors    int
	Diagnostics   ukf.Diagnostics
	NISConfidence float64
	NIS           []evaluation.NISStats

	// RMSE is [px, py, vx, vy]; nil when no reading carried ground truth.
	RMSE *evaluation.Sample

	// Final is the estimate after the last reading, valid when Estimates > 0.
	Final ukf.StateVector
	// SpeedUnits selects the unit the final speed is printed in; see
	// package units.
	SpeedUnits string
}

// RMSEArray returns RMSE in the form the store expects.
func (s Summary) RMSEArray() *[4]float64 {
	if s.RMSE == nil {
		return nil
	}
	a := [4]float64(*s.RMSE)
	return &a
}

// WriteTo prints a human readable report.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	var n int64
	printf := func(format string, args ...interface{}) error {
		m, err := fmt.Fprintf(w, format, args...)
		n += int64(m)
		return err
	}

	d := s.Diagnostics
	if err := printf("estimates: %d (parse errors %d, rejected %d)\n", s.Estimates, s.ParseErrors, d.RejectedReadings); err != nil {
		return n, err
	}
	if err := printf("predictions: %d  corrections: %d  out-of-order: %d  regularised: %d\n",
		d.Predictions, d.Corrections, d.OutOfOrder, d.Regularized); err != nil {
		return n, err
	}
	if d.SkippedPredictions+d.SkippedCorrections+d.DisabledReadings > 0 {
		if err := printf("skipped: %d predictions, %d corrections, %d disabled-sensor readings\n",
			d.SkippedPredictions, d.SkippedCorrections, d.DisabledReadings); err != nil {
			return n, err
		}
	}
	if s.Estimates > 0 {
		x := s.Final
		speed := units.ConvertSpeed(x.Speed(), s.SpeedUnits)
		if err := printf("final: px=%.3f py=%.3f speed=%.2f %s yaw=%.3f yawd=%.3f\n",
			x.PX(), x.PY(), speed, units.Label(s.SpeedUnits), x.Yaw(), x.YawRate()); err != nil {
			return n, err
		}
	}
	if s.RMSE != nil {
		r := *s.RMSE
		if err := printf("RMSE px=%.4f py=%.4f vx=%.4f vy=%.4f\n", r[0], r[1], r[2], r[3]); err != nil {
			return n, err
		}
	}
	for _, st := range s.NIS {
		if st.Count == 0 {
			continue
		}
		verdict := "consistent"
		if !st.Consistent(s.NISConfidence) {
			verdict = "inconsistent"
		}
		if err := printf("NIS %s: n=%d mean=%.3f above %.3f: %.1f%% (%s)\n",
			st.Sensor, st.Count, st.Mean, st.Threshold, 100*st.FractionAbove, verdict); err != nil {
			return n, err
		}
	}
	return n, nil
}
