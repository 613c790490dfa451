package ukf

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensorfusion/internal/config"
	"github.com/banshee-data/sensorfusion/internal/monitoring"
)

var logf = monitoring.Prefixed("ukf")

var (
	// ErrUnknownSensor is returned for readings whose sensor kind the
	// filter has no measurement model for. State is never mutated.
	ErrUnknownSensor = errors.New("unknown sensor kind")
	// ErrNotInitialized is returned by Predict before the first reading.
	ErrNotInitialized = errors.New("estimator not initialized")
	// ErrNoPrediction is returned by Correct when no predicted sigma points
	// are pending, i.e. Predict did not run earlier in the same cycle.
	ErrNoPrediction = errors.New("no predicted sigma points for this cycle")
	// ErrNotPositiveDefinite is returned when the augmented covariance
	// cannot be factorised even after regularisation.
	ErrNotPositiveDefinite = errors.New("augmented covariance not positive definite")
	// ErrSingularInnovation is returned when the innovation covariance
	// cannot be inverted.
	ErrSingularInnovation = errors.New("innovation covariance is singular")
	// ErrNonFinite is returned when a step would have written NaN or Inf
	// into the estimate.
	ErrNonFinite = errors.New("non-finite estimate")
	// ErrNonFiniteReading is returned for readings carrying NaN or Inf.
	// State is never mutated.
	ErrNonFiniteReading = errors.New("reading has non-finite values")
)

// Options configures an Estimator.
type Options struct {
	Noise    NoiseModel
	UseLaser bool
	UseRadar bool

	// MinRange floors the range used as a divisor in the radar model.
	MinRange float64
	// CholeskyJitter is the first diagonal load tried when the augmented
	// covariance fails to factorise; it grows ×10 per attempt.
	CholeskyJitter float64
	// MaxRegularizationAttempts bounds the jitter retries.
	MaxRegularizationAttempts int
}

// DefaultOptions returns the built-in tuning defaults.
func DefaultOptions() Options {
	return OptionsFromTuning(config.DefaultTuningConfig())
}

// OptionsFromTuning builds Options from a loaded TuningConfig.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	return Options{
		Noise: NoiseModel{
			StdA:     cfg.GetStdA(),
			StdYawdd: cfg.GetStdYawdd(),
		},
		UseLaser:                  cfg.GetUseLaser(),
		UseRadar:                  cfg.GetUseRadar(),
		MinRange:                  cfg.GetMinRange(),
		CholeskyJitter:            cfg.GetCholeskyJitter(),
		MaxRegularizationAttempts: cfg.GetMaxRegularizationAttempts(),
	}
}

// StateVector is the CTRV state [px, py, v, yaw, yawd].
type StateVector [StateDim]float64

func (s StateVector) PX() float64      { return s[0] }
func (s StateVector) PY() float64      { return s[1] }
func (s StateVector) Speed() float64   { return s[2] }
func (s StateVector) Yaw() float64     { return s[3] }
func (s StateVector) YawRate() float64 { return s[4] }

// VX returns the x component of velocity.
func (s StateVector) VX() float64 { return s[2] * math.Cos(s[3]) }

// VY returns the y component of velocity.
func (s StateVector) VY() float64 { return s[2] * math.Sin(s[3]) }

// SkipReason explains why part of a cycle did not run.
type SkipReason string

const (
	SkipNone               SkipReason = ""
	SkipSensorDisabled     SkipReason = "sensor_disabled"
	SkipDegenerateCov      SkipReason = "degenerate_covariance"
	SkipSingularInnovation SkipReason = "singular_innovation"
	SkipNonFinite          SkipReason = "non_finite"
)

// Step reports what ProcessMeasurement did with one reading.
type Step struct {
	Sensor      SensorKind
	TimestampUS int64
	Initialized bool    // this reading seeded the filter
	Predicted   bool    // prediction ran
	Corrected   bool    // correction ran and was applied
	Dt          float64 // seconds used for prediction (after clamping)
	OutOfOrder  bool    // timestamp was not later than the previous one
	NIS         float64 // normalised innovation squared, valid when Corrected
	Skipped     SkipReason
}

// Diagnostics counts noteworthy events over the estimator's lifetime.
type Diagnostics struct {
	Readings            int
	Predictions         int
	Corrections         int
	OutOfOrder          int
	Regularized         int // predictions that needed diagonal loading
	SkippedPredictions  int
	SkippedCorrections  int
	DisabledReadings    int
	RejectedReadings    int
	NonFiniteRecoveries int
}

// Estimator is the UKF state estimator. Create with New.
type Estimator struct {
	opts    Options
	weights [SigmaCount]float64 // fixed at construction

	initialized bool
	timeUS      int64
	x           StateVector
	p           *mat.SymDense

	// sigmaPred holds the predicted sigma points (StateDim × SigmaCount)
	// from the last Predict. It is valid for exactly one Correct call.
	sigmaPred  *mat.Dense
	sigmaValid bool

	diag Diagnostics
}

// New creates an estimator. Mean and covariance are undefined until the
// first reading is processed.
func New(opts Options) *Estimator {
	if opts.MinRange <= 0 {
		opts.MinRange = 1e-6
	}
	if opts.CholeskyJitter <= 0 {
		opts.CholeskyJitter = 1e-9
	}
	return &Estimator{
		opts:      opts,
		weights:   sigmaWeights(),
		p:         mat.NewSymDense(StateDim, nil),
		sigmaPred: mat.NewDense(StateDim, SigmaCount, nil),
	}
}

// Weights returns a copy of the sigma point weights.
func (e *Estimator) Weights() [SigmaCount]float64 { return e.weights }

// Initialized reports whether the first reading has been processed.
func (e *Estimator) Initialized() bool { return e.initialized }

// TimestampUS returns the time reference of the current estimate.
func (e *Estimator) TimestampUS() int64 { return e.timeUS }

// State returns the current mean.
func (e *Estimator) State() StateVector { return e.x }

// Covariance returns a copy of the current covariance.
func (e *Estimator) Covariance() *mat.SymDense {
	c := mat.NewSymDense(StateDim, nil)
	c.CopySym(e.p)
	return c
}

// Diagnostics returns the event counters.
func (e *Estimator) Diagnostics() Diagnostics { return e.diag }

func (e *Estimator) sensorEnabled(k SensorKind) bool {
	switch k {
	case SensorLaser:
		return e.opts.UseLaser
	case SensorRadar:
		return e.opts.UseRadar
	}
	return false
}

// ProcessMeasurement runs one filter cycle for m: initialise on the first
// reading, otherwise predict over the elapsed time and correct with the
// matching sensor model.
//
// Only a reading the filter cannot interpret returns an error. Numerical
// trouble is recovered inside the cycle and reported through Step.Skipped;
// the estimate is never left non-finite.
func (e *Estimator) ProcessMeasurement(m Measurement) (Step, error) {
	kind := m.Kind()
	step := Step{Sensor: kind, TimestampUS: m.TimestampUS}

	if kind != SensorLaser && kind != SensorRadar {
		e.diag.RejectedReadings++
		logf("rejected reading at t=%d: %v", m.TimestampUS, ErrUnknownSensor)
		return step, fmt.Errorf("process measurement at t=%d: %w", m.TimestampUS, ErrUnknownSensor)
	}
	if !readingFinite(m.Reading) {
		e.diag.RejectedReadings++
		logf("rejected %s reading at t=%d: %v", kind, m.TimestampUS, ErrNonFiniteReading)
		return step, fmt.Errorf("process measurement at t=%d: %w", m.TimestampUS, ErrNonFiniteReading)
	}
	e.diag.Readings++

	if !e.initialized {
		e.initialize(m)
		step.Initialized = true
		return step, nil
	}

	// Disabled sensors are ignored entirely once initialised, including
	// the time reference.
	if !e.sensorEnabled(kind) {
		e.diag.DisabledReadings++
		step.Skipped = SkipSensorDisabled
		return step, nil
	}

	dt := float64(m.TimestampUS-e.timeUS) / 1e6
	if m.TimestampUS <= e.timeUS {
		// Equal or earlier timestamp: no dynamics, still correct.
		step.OutOfOrder = true
		e.diag.OutOfOrder++
		if m.TimestampUS < e.timeUS {
			logf("out-of-order reading: t=%d precedes t=%d, clamping dt to 0", m.TimestampUS, e.timeUS)
		}
		dt = 0
	} else {
		e.timeUS = m.TimestampUS
	}
	step.Dt = dt

	if err := e.Predict(dt); err != nil {
		e.diag.SkippedPredictions++
		step.Skipped = SkipDegenerateCov
		if errors.Is(err, ErrNonFinite) {
			step.Skipped = SkipNonFinite
		}
		logf("skipped prediction at t=%d: %v", m.TimestampUS, err)
		return step, nil
	}
	step.Predicted = true

	nis, err := e.Correct(m.Reading)
	if err != nil {
		e.diag.SkippedCorrections++
		step.Skipped = SkipSingularInnovation
		if errors.Is(err, ErrNonFinite) {
			step.Skipped = SkipNonFinite
		}
		logf("skipped %s correction at t=%d: %v", kind, m.TimestampUS, err)
		return step, nil
	}
	step.Corrected = true
	step.NIS = nis
	return step, nil
}

// initialize seeds mean and covariance from the first reading.
func (e *Estimator) initialize(m Measurement) {
	e.x = StateVector{}
	var diag [StateDim]float64
	switch r := m.Reading.(type) {
	case PositionReading:
		e.x[0], e.x[1] = r.X, r.Y
		diag = [StateDim]float64{StdLaserPx * StdLaserPx, StdLaserPy * StdLaserPy, 1, 1, 1}
	case RangeBearingReading:
		e.x[0], e.x[1] = r.Cartesian()
		// The direction of motion is unknown, so the range rate stands in
		// for the speed as a first-order guess.
		e.x[2] = r.RangeRate
		diag = [StateDim]float64{StdRadarR * StdRadarR, StdRadarPhi * StdRadarPhi, StdRadarRdot * StdRadarRdot, 1, 1}
	}
	e.p = mat.NewSymDense(StateDim, nil)
	for i, v := range diag {
		e.p.SetSym(i, i, v)
	}
	e.timeUS = m.TimestampUS
	e.sigmaValid = false
	e.initialized = true
}

// readingFinite reports whether every value of r is finite.
func readingFinite(r Reading) bool {
	for _, v := range r.vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// isFinite reports whether every element of the mean and covariance is
// finite.
func isFinite(x StateVector, p mat.Matrix) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	r, c := p.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := p.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// symmetrize returns (a + aᵀ)/2 as a SymDense.
func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}
