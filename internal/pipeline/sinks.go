package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/sensorfusion/internal/db"
)

// DBSink stores estimates of one run in the SQLite store.
type DBSink struct {
	db    *db.DB
	runID string
}

// NewDBSink returns a sink writing to runID.
func NewDBSink(store *db.DB, runID string) *DBSink {
	return &DBSink{db: store, runID: runID}
}

func (s *DBSink) WriteEstimate(out Output) error {
	e := &db.Estimate{
		RunID:       s.runID,
		Seq:         out.Seq,
		TimestampUS: out.Record.Measurement.TimestampUS,
		Sensor:      out.Step.Sensor.String(),
		PX:          out.State.PX(),
		PY:          out.State.PY(),
		V:           out.State.Speed(),
		Yaw:         out.State.Yaw(),
		YawRate:     out.State.YawRate(),
	}
	if out.Step.Corrected {
		nis := out.Step.NIS
		e.NIS = &nis
	}
	if gt := out.Record.GroundTruth; gt != nil {
		e.GroundTruth = &[4]float64{gt.PX, gt.PY, gt.VX, gt.VY}
	}
	return s.db.RecordEstimate(e)
}

// TextSink writes one tab separated line per estimate:
//
//	timestamp_us sensor px py v yaw yawd nis [gt_px gt_py gt_vx gt_vy]
//
// nis is "-" when no correction ran.
type TextSink struct {
	w io.Writer
}

// NewTextSink returns a sink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) WriteEstimate(out Output) error {
	x := out.State
	fields := []string{
		strconv.FormatInt(out.Record.Measurement.TimestampUS, 10),
		out.Step.Sensor.String(),
		ff(x.PX()), ff(x.PY()), ff(x.Speed()), ff(x.Yaw()), ff(x.YawRate()),
	}
	if out.Step.Corrected {
		fields = append(fields, ff(out.Step.NIS))
	} else {
		fields = append(fields, "-")
	}
	if gt := out.Record.GroundTruth; gt != nil {
		fields = append(fields, ff(gt.PX), ff(gt.PY), ff(gt.VX), ff(gt.VY))
	}
	_, err := fmt.Fprintln(s.w, strings.Join(fields, "\t"))
	return err
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }
