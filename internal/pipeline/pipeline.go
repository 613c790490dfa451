// Package pipeline drives a single estimator from a stream of measurement
// lines and collects the evaluation and report data for a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/sensorfusion/internal/evaluation"
	"github.com/banshee-data/sensorfusion/internal/monitoring"
	"github.com/banshee-data/sensorfusion/internal/report"
	"github.com/banshee-data/sensorfusion/internal/sensordata"
	"github.com/banshee-data/sensorfusion/internal/ukf"
)

var logf = monitoring.Prefixed("pipeline")

// Output is the filter result after one reading.
type Output struct {
	Seq    int
	Record sensordata.Record
	Step   ukf.Step
	State  ukf.StateVector
}

// EstimateSink receives every Output in order.
type EstimateSink interface {
	WriteEstimate(out Output) error
}

// Config configures a Pipeline.
type Config struct {
	Options       ukf.Options
	NISConfidence float64
	Sinks         []EstimateSink
	// StopOnSinkError makes a sink failure abort HandleRecord. By default
	// failures are logged and counted.
	StopOnSinkError bool
}

// Pipeline feeds readings to one estimator. All methods are safe for
// concurrent use; readings are applied in the order the calls acquire the
// lock.
type Pipeline struct {
	mu   sync.Mutex
	cfg  Config
	est  *ukf.Estimator
	rmse evaluation.RMSE
	nis  *evaluation.NISMonitor
	seq  int

	traj report.Trajectory

	parseErrors int
	sinkErrors  int
}

// New creates a pipeline with a fresh estimator.
func New(cfg Config) *Pipeline {
	if cfg.NISConfidence <= 0 || cfg.NISConfidence >= 1 {
		cfg.NISConfidence = 0.95
	}
	return &Pipeline{
		cfg: cfg,
		est: ukf.New(cfg.Options),
		nis: evaluation.NewNISMonitor(cfg.NISConfidence),
	}
}

// HandleLine parses and processes one log line. Blank and comment lines
// are ignored. It satisfies network.LineHandler.
func (p *Pipeline) HandleLine(line string) error {
	rec, err := sensordata.ParseLine(line)
	if err != nil {
		p.mu.Lock()
		p.parseErrors++
		p.mu.Unlock()
		return err
	}
	if rec == nil {
		return nil
	}
	_, err = p.HandleRecord(*rec)
	return err
}

// HandleRecord runs one filter cycle for rec and updates the run
// statistics.
func (p *Pipeline) HandleRecord(rec sensordata.Record) (ukf.Step, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	step, err := p.est.ProcessMeasurement(rec.Measurement)
	if err != nil {
		return step, err
	}

	x := p.est.State()
	if step.Corrected {
		p.nis.Add(step.Sensor, step.NIS)
	}
	if rec.GroundTruth != nil {
		p.rmse.Add(evaluation.SampleFromState(x), evaluation.SampleFromGroundTruth(*rec.GroundTruth))
		p.traj.GroundTruth = append(p.traj.GroundTruth, report.Point{X: rec.GroundTruth.PX, Y: rec.GroundTruth.PY})
	}
	p.traj.Estimates = append(p.traj.Estimates, report.Point{X: x.PX(), Y: x.PY()})
	switch r := rec.Measurement.Reading.(type) {
	case ukf.PositionReading:
		p.traj.Laser = append(p.traj.Laser, report.Point{X: r.X, Y: r.Y})
	case ukf.RangeBearingReading:
		px, py := r.Cartesian()
		p.traj.Radar = append(p.traj.Radar, report.Point{X: px, Y: py})
	}

	out := Output{Seq: p.seq, Record: rec, Step: step, State: x}
	p.seq++
	for _, sink := range p.cfg.Sinks {
		if err := sink.WriteEstimate(out); err != nil {
			p.sinkErrors++
			if p.cfg.StopOnSinkError {
				return step, fmt.Errorf("write estimate %d: %w", out.Seq, err)
			}
			logf("failed to write estimate %d: %v", out.Seq, err)
		}
	}
	return step, nil
}

// RunReader processes every line from r until EOF or ctx is cancelled.
// Lines that fail to parse, name an unknown sensor or carry non-finite
// values are logged and skipped; sink failures abort only when StopOnSinkError is set.
func (p *Pipeline) RunReader(ctx context.Context, r io.Reader) error {
	reader := sensordata.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if errors.Is(err, sensordata.ErrMalformedLine) || errors.Is(err, ukf.ErrUnknownSensor) {
				p.mu.Lock()
				p.parseErrors++
				p.mu.Unlock()
				logf("skipping input: %v", err)
				continue
			}
			return err
		}
		if _, err := p.HandleRecord(*rec); err != nil {
			if errors.Is(err, ukf.ErrUnknownSensor) || errors.Is(err, ukf.ErrNonFiniteReading) {
				logf("skipping line %d: %v", rec.Line, err)
				continue
			}
			return fmt.Errorf("line %d: %w", rec.Line, err)
		}
	}
}

// Estimate returns a snapshot of the current mean and the diagnostics.
func (p *Pipeline) Estimate() (ukf.StateVector, ukf.Diagnostics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.est.State(), p.est.Diagnostics()
}

// Trajectory returns a copy of the positions collected so far.
func (p *Pipeline) Trajectory(title string) report.Trajectory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return report.Trajectory{
		Title:       title,
		Estimates:   append([]report.Point(nil), p.traj.Estimates...),
		Laser:       append([]report.Point(nil), p.traj.Laser...),
		Radar:       append([]report.Point(nil), p.traj.Radar...),
		GroundTruth: append([]report.Point(nil), p.traj.GroundTruth...),
	}
}

// NISSeries returns the NIS trace of every sensor that produced at least
// one correction.
func (p *Pipeline) NISSeries() []report.NISSeries {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []report.NISSeries
	for _, kind := range []ukf.SensorKind{ukf.SensorLaser, ukf.SensorRadar} {
		samples := p.nis.Samples(kind)
		if len(samples) == 0 {
			continue
		}
		out = append(out, report.NISSeries{
			Sensor:    kind.String(),
			Samples:   samples,
			Threshold: evaluation.NISThreshold(kind, p.nis.Confidence()),
		})
	}
	return out
}

// Summary returns the run statistics so far.
func (p *Pipeline) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Summary{
		Estimates:     p.seq,
		ParseErrors:   p.parseErrors,
		SinkErrors:    p.sinkErrors,
		Diagnostics:   p.est.Diagnostics(),
		Final:         p.est.State(),
		NISConfidence: p.nis.Confidence(),
		NIS: []evaluation.NISStats{
			p.nis.Stats(ukf.SensorLaser),
			p.nis.Stats(ukf.SensorRadar),
		},
	}
	if p.rmse.Count() > 0 {
		v := p.rmse.Value()
		s.RMSE = &v
	}
	return s
}
