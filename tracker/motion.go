package tracker

// Motion is the motion-continuity model a track uses to carry its box
// estimate between frames.  Predict advances the model by one time step and
// returns the predicted box, Correct folds a new measurement into the model
// and returns the fused box estimate
type Motion interface {
	// Init seeds the model from the first accepted detection
	Init(box Box)
	// Predict advances the model one time step and returns the predicted box
	Predict() Box
	// Correct updates the model with a measured box and returns the fused
	// box estimate
	Correct(meas Box) (Box, error)
}

// EMA is a Motion model applying exponential moving average smoothing to
// the box center, size and landmark points.  It performs no motion
// extrapolation so Predict returns the current estimate.  A higher alpha
// makes the estimate more responsive to new measurements at the cost of
// smoothness
type EMA struct {
	alpha float32
	box   Box
}

// NewEMA creates an EMA motion model with the given smoothing weight.
// Alpha must be in (0,1], where 1.0 disables smoothing entirely
func NewEMA(alpha float32) *EMA {
	return &EMA{alpha: alpha}
}

// Init seeds the model with the first box
func (e *EMA) Init(box Box) {
	e.box = box.Clone()
}

// Predict returns the current box estimate unchanged
func (e *EMA) Predict() Box {
	return e.box
}

// Correct blends the measurement into the current estimate using
// new = old*(1-alpha) + measurement*alpha applied independently to the
// center coordinates, width, height and each landmark point
func (e *EMA) Correct(meas Box) (Box, error) {

	a := e.alpha

	e.box.X = e.box.X*(1-a) + meas.X*a
	e.box.Y = e.box.Y*(1-a) + meas.Y*a
	e.box.W = e.box.W*(1-a) + meas.W*a
	e.box.H = e.box.H*(1-a) + meas.H*a
	e.box.Prob = meas.Prob

	// landmarks are only smoothed when both estimate and measurement carry
	// the same keypoint set, otherwise the measured points replace the
	// previous ones
	if len(e.box.Landmarks) == len(meas.Landmarks) && meas.Landmarks != nil {
		for i := range meas.Landmarks {
			e.box.Landmarks[i].X = e.box.Landmarks[i].X*(1-a) + meas.Landmarks[i].X*a
			e.box.Landmarks[i].Y = e.box.Landmarks[i].Y*(1-a) + meas.Landmarks[i].Y*a
		}
	} else if meas.Landmarks != nil {
		e.box.Landmarks = make([]Point, len(meas.Landmarks))
		copy(e.box.Landmarks, meas.Landmarks)
	}

	return e.box, nil
}
