package ukf

import "gonum.org/v1/gonum/mat"

// Measurement noise standard deviations as specified by the sensor
// manufacturers. These are not tuning parameters.
const (
	StdLaserPx   = 0.15 // metres
	StdLaserPy   = 0.15 // metres
	StdRadarR    = 0.3  // metres
	StdRadarPhi  = 0.03 // radians
	StdRadarRdot = 0.3  // m/s
)

// NoiseModel holds the process noise. StdA and StdYawdd trade
// responsiveness against smoothness.
type NoiseModel struct {
	StdA     float64 // longitudinal acceleration σ (m/s²)
	StdYawdd float64 // yaw acceleration σ (rad/s²)
}

// laserR returns the laser measurement noise covariance.
func laserR() *mat.SymDense {
	return mat.NewSymDense(2, []float64{
		StdLaserPx * StdLaserPx, 0,
		0, StdLaserPy * StdLaserPy,
	})
}

// radarR returns the radar measurement noise covariance.
func radarR() *mat.SymDense {
	return mat.NewSymDense(3, []float64{
		StdRadarR * StdRadarR, 0, 0,
		0, StdRadarPhi * StdRadarPhi, 0,
		0, 0, StdRadarRdot * StdRadarRdot,
	})
}
