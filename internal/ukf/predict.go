package ukf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Predict advances the mean and covariance by dt seconds through the CTRV
// model using the unscented transform, and caches the predicted sigma
// points for the Correct call that must follow in the same cycle.
//
// A negative or NaN dt is clamped to 0: time never runs backwards.
// On error the prior estimate is left untouched and no sigma points are
// pending.
func (e *Estimator) Predict(dt float64) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if dt < 0 || math.IsNaN(dt) {
		logf("predict: clamping dt=%g to 0", dt)
		dt = 0
	}
	e.sigmaValid = false

	xAug, l, err := e.augmentedSqrt()
	if err != nil {
		return err
	}

	scale := math.Sqrt(Lambda + AugDim)
	pred := mat.NewDense(StateDim, SigmaCount, nil)
	for c := 0; c < SigmaCount; c++ {
		point := xAug
		if c > 0 {
			// Columns 1..7 add the scaled square-root columns, 8..14 subtract them.
			col := (c - 1) % AugDim
			sign := 1.0
			if c > AugDim {
				sign = -1
			}
			for r := 0; r < AugDim; r++ {
				point[r] += sign * scale * l.At(r, col)
			}
		}
		next := propagateCTRV(point, dt)
		pred.SetCol(c, next[:])
	}

	x, p := e.recombine(pred)
	if !isFinite(x, p) {
		e.diag.NonFiniteRecoveries++
		return fmt.Errorf("predict dt=%g: %w", dt, ErrNonFinite)
	}

	e.x = x
	e.p = p
	e.sigmaPred = pred
	e.sigmaValid = true
	e.diag.Predictions++
	return nil
}

// augmentedSqrt builds the augmented mean and covariance and returns the
// mean with a lower-triangular square root of the covariance.
func (e *Estimator) augmentedSqrt() ([AugDim]float64, *mat.TriDense, error) {
	var xAug [AugDim]float64
	copy(xAug[:], e.x[:])

	pAug := mat.NewSymDense(AugDim, nil)
	for i := 0; i < StateDim; i++ {
		for j := i; j < StateDim; j++ {
			pAug.SetSym(i, j, e.p.At(i, j))
		}
	}
	pAug.SetSym(StateDim, StateDim, e.opts.Noise.StdA*e.opts.Noise.StdA)
	pAug.SetSym(StateDim+1, StateDim+1, e.opts.Noise.StdYawdd*e.opts.Noise.StdYawdd)

	l, regularized, err := choleskyLower(pAug, e.opts.CholeskyJitter, e.opts.MaxRegularizationAttempts)
	if err != nil {
		return xAug, nil, err
	}
	if regularized {
		e.diag.Regularized++
	}
	return xAug, l, nil
}

// choleskyLower returns L with L·Lᵀ = a. When a is not numerically positive
// definite it retries with a growing diagonal load, then with the
// eigenvalues clamped to the final load. The bool reports whether any
// regularisation was needed.
func choleskyLower(a *mat.SymDense, jitter float64, attempts int) (*mat.TriDense, bool, error) {
	if !isFinite(StateVector{}, a) {
		return nil, false, fmt.Errorf("%w: non-finite entries", ErrNotPositiveDefinite)
	}

	var chol mat.Cholesky
	if chol.Factorize(a) {
		return lowerOf(&chol), false, nil
	}

	n, _ := a.Dims()
	load := jitter
	loaded := mat.NewSymDense(n, nil)
	for k := 0; k < attempts; k++ {
		loaded.CopySym(a)
		for i := 0; i < n; i++ {
			loaded.SetSym(i, i, a.At(i, i)+load)
		}
		if chol.Factorize(loaded) {
			logf("covariance regularised with diagonal load %g after %d attempt(s)", load, k+1)
			return lowerOf(&chol), true, nil
		}
		load *= 10
	}

	if clamped, ok := clampEigenvalues(a, load); ok && chol.Factorize(clamped) {
		logf("covariance regularised by clamping eigenvalues to %g", load)
		return lowerOf(&chol), true, nil
	}
	return nil, false, ErrNotPositiveDefinite
}

func lowerOf(chol *mat.Cholesky) *mat.TriDense {
	var l mat.TriDense
	chol.LTo(&l)
	return &l
}

// clampEigenvalues rebuilds a with every eigenvalue raised to at least floor.
func clampEigenvalues(a *mat.SymDense, floor float64) (*mat.SymDense, bool) {
	var eig mat.EigenSym
	if !eig.Factorize(a, true) {
		return nil, false
	}
	vals := eig.Values(nil)
	for i := range vals {
		if vals[i] < floor {
			vals[i] = floor
		}
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	var scaled, rebuilt mat.Dense
	scaled.Mul(&vecs, mat.NewDiagDense(len(vals), vals))
	rebuilt.Mul(&scaled, vecs.T())
	return symmetrize(&rebuilt), true
}

// propagateCTRV moves one augmented sigma point forward by dt seconds.
// The last two entries are the acceleration and yaw acceleration noise.
func propagateCTRV(s [AugDim]float64, dt float64) [StateDim]float64 {
	px, py, v, yaw, yawd := s[0], s[1], s[2], s[3], s[4]
	nuA, nuYawdd := s[5], s[6]

	var pxP, pyP float64
	if math.Abs(yawd) > yawRateMin {
		pxP = px + v/yawd*(math.Sin(yaw+yawd*dt)-math.Sin(yaw))
		pyP = py + v/yawd*(math.Cos(yaw)-math.Cos(yaw+yawd*dt))
	} else {
		pxP = px + v*dt*math.Cos(yaw)
		pyP = py + v*dt*math.Sin(yaw)
	}

	half := 0.5 * dt * dt
	return [StateDim]float64{
		pxP + half*nuA*math.Cos(yaw),
		pyP + half*nuA*math.Sin(yaw),
		v + nuA*dt,
		yaw + yawd*dt + half*nuYawdd,
		yawd + nuYawdd*dt,
	}
}

// recombine computes the weighted mean and covariance of predicted sigma
// points. Yaw differences are wrapped before the outer product.
func (e *Estimator) recombine(pred *mat.Dense) (StateVector, *mat.SymDense) {
	var x StateVector
	for c := 0; c < SigmaCount; c++ {
		for r := 0; r < StateDim; r++ {
			x[r] += e.weights[c] * pred.At(r, c)
		}
	}

	p := mat.NewSymDense(StateDim, nil)
	d := mat.NewVecDense(StateDim, nil)
	for c := 0; c < SigmaCount; c++ {
		for r := 0; r < StateDim; r++ {
			d.SetVec(r, pred.At(r, c)-x[r])
		}
		d.SetVec(yawIdx, NormalizeAngle(d.AtVec(yawIdx)))
		p.SymRankOne(p, e.weights[c], d)
	}

	x[yawIdx] = NormalizeAngle(x[yawIdx])
	return x, p
}
