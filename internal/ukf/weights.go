package ukf

// Filter dimensions.
const (
	StateDim   = 5            // px, py, v, yaw, yawd
	AugDim     = StateDim + 2 // plus longitudinal and yaw acceleration noise
	SigmaCount = 2*AugDim + 1 // 15
	Lambda     = 3.0 - AugDim // sigma point spread
	yawIdx     = 3            // heading row in the state vector
	yawRateMin = 0.001        // |yawd| below this uses the straight-line model
)

// sigmaWeights returns the sigma point weights for the augmented dimension.
// The first weight is negative for Lambda < 0; the weights still sum to 1.
func sigmaWeights() [SigmaCount]float64 {
	var w [SigmaCount]float64
	w[0] = Lambda / (Lambda + AugDim)
	for i := 1; i < SigmaCount; i++ {
		w[i] = 0.5 / (Lambda + AugDim)
	}
	return w
}
