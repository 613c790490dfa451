package ukf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const bearingRow = 1 // bearing row in radar measurement space

// Correct applies the measurement update for r using the sigma points
// cached by the preceding Predict, and returns the normalised innovation
// squared (NIS) of the reading.
//
// The cached sigma points are consumed whether or not the update succeeds;
// calling Correct twice without a Predict in between returns
// ErrNoPrediction. On error the estimate is left untouched.
func (e *Estimator) Correct(r Reading) (float64, error) {
	switch rd := r.(type) {
	case PositionReading:
		if !e.takeSigma() {
			return 0, ErrNoPrediction
		}
		return e.correct(e.projectLaser(), rd.vector(), laserR(), -1)
	case RangeBearingReading:
		if !e.takeSigma() {
			return 0, ErrNoPrediction
		}
		return e.correct(e.projectRadar(), rd.vector(), radarR(), bearingRow)
	default:
		return 0, ErrUnknownSensor
	}
}

// takeSigma consumes the single-slot sigma point handoff.
func (e *Estimator) takeSigma() bool {
	ok := e.sigmaValid
	e.sigmaValid = false
	return ok
}

// projectLaser maps predicted sigma points into laser space: [px, py].
func (e *Estimator) projectLaser() *mat.Dense {
	z := mat.NewDense(2, SigmaCount, nil)
	for c := 0; c < SigmaCount; c++ {
		z.Set(0, c, e.sigmaPred.At(0, c))
		z.Set(1, c, e.sigmaPred.At(1, c))
	}
	return z
}

// projectRadar maps predicted sigma points into radar space:
// [range, bearing, range rate].
func (e *Estimator) projectRadar() *mat.Dense {
	z := mat.NewDense(3, SigmaCount, nil)
	for c := 0; c < SigmaCount; c++ {
		px := e.sigmaPred.At(0, c)
		py := e.sigmaPred.At(1, c)
		v := e.sigmaPred.At(2, c)
		yaw := e.sigmaPred.At(3, c)

		rho := math.Hypot(px, py)
		div := math.Max(rho, e.opts.MinRange)
		z.Set(0, c, rho)
		z.Set(1, c, math.Atan2(py, px))
		z.Set(2, c, (px*v*math.Cos(yaw)+py*v*math.Sin(yaw))/div)
	}

	// Unwrap bearings around the first sigma point so the weighted mean is
	// not torn apart when the points straddle ±π.
	ref := z.At(bearingRow, 0)
	for c := 1; c < SigmaCount; c++ {
		z.Set(bearingRow, c, ref+NormalizeAngle(z.At(bearingRow, c)-ref))
	}
	return z
}

// correct is the shared UKF measurement update. angleRow is the index of
// the angular component in measurement space, or -1 when there is none.
func (e *Estimator) correct(zSig *mat.Dense, z []float64, r *mat.SymDense, angleRow int) (float64, error) {
	nz, _ := zSig.Dims()

	zPred := mat.NewVecDense(nz, nil)
	for c := 0; c < SigmaCount; c++ {
		for i := 0; i < nz; i++ {
			zPred.SetVec(i, zPred.AtVec(i)+e.weights[c]*zSig.At(i, c))
		}
	}
	if angleRow >= 0 {
		zPred.SetVec(angleRow, NormalizeAngle(zPred.AtVec(angleRow)))
	}

	// Innovation covariance S and state/measurement cross-covariance T.
	s := mat.NewSymDense(nz, nil)
	tc := mat.NewDense(StateDim, nz, nil)
	dz := mat.NewVecDense(nz, nil)
	dx := mat.NewVecDense(StateDim, nil)
	for c := 0; c < SigmaCount; c++ {
		for i := 0; i < nz; i++ {
			dz.SetVec(i, zSig.At(i, c)-zPred.AtVec(i))
		}
		if angleRow >= 0 {
			dz.SetVec(angleRow, NormalizeAngle(dz.AtVec(angleRow)))
		}
		for i := 0; i < StateDim; i++ {
			dx.SetVec(i, e.sigmaPred.At(i, c)-e.x[i])
		}
		dx.SetVec(yawIdx, NormalizeAngle(dx.AtVec(yawIdx)))

		s.SymRankOne(s, e.weights[c], dz)
		tc.RankOne(tc, e.weights[c], dx, dz)
	}
	s.AddSym(s, r)

	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
	}

	var k mat.Dense
	k.Mul(tc, &sInv)

	y := mat.NewVecDense(nz, nil)
	for i := 0; i < nz; i++ {
		y.SetVec(i, z[i]-zPred.AtVec(i))
	}
	if angleRow >= 0 {
		y.SetVec(angleRow, NormalizeAngle(y.AtVec(angleRow)))
	}

	var gain mat.VecDense
	gain.MulVec(&k, y)
	x := e.x
	for i := 0; i < StateDim; i++ {
		x[i] += gain.AtVec(i)
	}
	x[yawIdx] = NormalizeAngle(x[yawIdx])

	var ks, ksk, pNew mat.Dense
	ks.Mul(&k, s)
	ksk.Mul(&ks, k.T())
	pNew.Sub(e.p, &ksk)
	p := symmetrize(&pNew)

	var sy mat.VecDense
	sy.MulVec(&sInv, y)
	nis := mat.Dot(y, &sy)

	if !isFinite(x, p) || math.IsNaN(nis) || math.IsInf(nis, 0) {
		e.diag.NonFiniteRecoveries++
		return 0, fmt.Errorf("correct: %w", ErrNonFinite)
	}

	e.x = x
	e.p = p
	e.diag.Corrections++
	return nis, nil
}
