// Package ukf estimates the kinematic state of a single moving object by
// fusing position ("laser") and range/bearing/range-rate ("radar") readings
// with an Unscented Kalman Filter over the constant turn-rate and velocity
// (CTRV) motion model.
//
// State vector: [px, py, v, yaw, yawd] (metres, m/s, radians, rad/s).
// Noise is handled by augmenting the state with longitudinal and yaw
// acceleration terms, giving 7 dimensions and 15 sigma points.
//
// An Estimator is not safe for concurrent use. Callers feed readings in
// non-decreasing timestamp order from a single goroutine, or serialise
// access themselves (see internal/pipeline).
package ukf
