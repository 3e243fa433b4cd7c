package tracker

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// kalman state layout is [x, y, w, h, vx, vy, vw, vh] with a measurement
// model observing [x, y, w, h] where x,y is the box center and w,h its size
const (
	kalmanStateSize = 8
	kalmanMeasSize  = 4
)

// Kalman is a constant-velocity Kalman filter Motion model over the full
// bounding box dynamics.  It is the motion strategy used by the
// multi-target Registry and can be swapped into a single-target Track in
// place of the default EMA model
type Kalman struct {
	stdWeightPosition float32
	stdWeightVelocity float32
	motionMat         *mat.Dense
	updateMat         *mat.Dense
	mean              []float32
	covariance        *mat.Dense
	landmarks         []Point
	initialized       bool
}

// NewKalman initializes and returns a new Kalman motion model.  The two
// weights scale process and measurement noise relative to the box height,
// the values 1/20 and 1/160 are reasonable defaults for normalized
// coordinates
func NewKalman(stdWeightPosition, stdWeightVelocity float32) *Kalman {

	ndim := kalmanMeasSize
	dt := float32(1.0)

	// constant velocity transition matrix
	motionMat := mat.NewDense(kalmanStateSize, kalmanStateSize, nil)

	for i := 0; i < kalmanStateSize; i++ {
		motionMat.Set(i, i, 1.0)
	}

	for i := 0; i < ndim; i++ {
		motionMat.Set(i, ndim+i, float64(dt))
	}

	// measurement matrix observing the first four state elements
	updateMat := mat.NewDense(kalmanMeasSize, kalmanStateSize, nil)

	for i := 0; i < kalmanMeasSize; i++ {
		updateMat.Set(i, i, 1.0)
	}

	return &Kalman{
		stdWeightPosition: stdWeightPosition,
		stdWeightVelocity: stdWeightVelocity,
		motionMat:         motionMat,
		updateMat:         updateMat,
		mean:              make([]float32, kalmanStateSize),
		covariance:        mat.NewDense(kalmanStateSize, kalmanStateSize, nil),
	}
}

// Init seeds the state mean from the first measurement with zero velocity
// components and a diagonal covariance scaled by the box height
func (kf *Kalman) Init(box Box) {

	kf.mean[0] = box.X
	kf.mean[1] = box.Y
	kf.mean[2] = box.W
	kf.mean[3] = box.H

	for i := kalmanMeasSize; i < kalmanStateSize; i++ {
		kf.mean[i] = 0
	}

	std := make([]float32, kalmanStateSize)
	std[0] = 2 * kf.stdWeightPosition * box.H
	std[1] = 2 * kf.stdWeightPosition * box.H
	std[2] = 2 * kf.stdWeightPosition * box.H
	std[3] = 2 * kf.stdWeightPosition * box.H
	std[4] = 10 * kf.stdWeightVelocity * box.H
	std[5] = 10 * kf.stdWeightVelocity * box.H
	std[6] = 10 * kf.stdWeightVelocity * box.H
	std[7] = 10 * kf.stdWeightVelocity * box.H

	kf.covariance.Zero()

	for i, v := range std {
		kf.covariance.Set(i, i, float64(v*v))
	}

	kf.landmarks = nil
	if box.Landmarks != nil {
		kf.landmarks = make([]Point, len(box.Landmarks))
		copy(kf.landmarks, box.Landmarks)
	}

	kf.initialized = true
}

// Predict advances the state and covariance by one time step and returns
// the predicted box
func (kf *Kalman) Predict() Box {

	if !kf.initialized {
		return kf.currentBox()
	}

	std := make([]float32, kalmanStateSize)
	std[0] = kf.stdWeightPosition * kf.mean[3]
	std[1] = kf.stdWeightPosition * kf.mean[3]
	std[2] = kf.stdWeightPosition * kf.mean[3]
	std[3] = kf.stdWeightPosition * kf.mean[3]
	std[4] = kf.stdWeightVelocity * kf.mean[3]
	std[5] = kf.stdWeightVelocity * kf.mean[3]
	std[6] = kf.stdWeightVelocity * kf.mean[3]
	std[7] = kf.stdWeightVelocity * kf.mean[3]

	motionCov := mat.NewDense(kalmanStateSize, kalmanStateSize, nil)

	for i, v := range std {
		motionCov.Set(i, i, float64(v*v))
	}

	// advance the mean through the motion model
	meanMat := mat.NewDense(kalmanStateSize, 1, nil)

	for i, v := range kf.mean {
		meanMat.Set(i, 0, float64(v))
	}

	meanMat.Mul(kf.motionMat, meanMat)

	for i := range kf.mean {
		kf.mean[i] = float32(meanMat.At(i, 0))
	}

	// advance the covariance
	cov := kf.covariance
	cov.Mul(kf.motionMat, cov)
	cov.Mul(cov, kf.motionMat.T())
	cov.Add(cov, motionCov)

	return kf.currentBox()
}

// Correct performs the standard gain-weighted correction with the measured
// box and returns the fused estimate
func (kf *Kalman) Correct(meas Box) (Box, error) {

	if !kf.initialized {
		kf.Init(meas)
		return kf.currentBox(), nil
	}

	projectedMean, projectedCov := kf.project()

	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return kf.currentBox(), errors.New("failed to factorize projected covariance")
	}

	// kalman gain via the Cholesky factorization
	B := mat.NewDense(kalmanStateSize, kalmanMeasSize, nil)
	B.Mul(kf.covariance, kf.updateMat.T())

	var kalmanGain mat.Dense
	err := chol.SolveTo(&kalmanGain, B.T())

	if err != nil {
		return kf.currentBox(), errors.Wrap(err, "failed to compute kalman gain")
	}

	// innovation (measurement residual)
	measVec := [kalmanMeasSize]float32{meas.X, meas.Y, meas.W, meas.H}
	innovation := make([]float64, kalmanMeasSize)

	for i := 0; i < kalmanMeasSize; i++ {
		innovation[i] = float64(measVec[i] - projectedMean[i])
	}

	innovationVec := mat.NewVecDense(kalmanMeasSize, innovation)
	tmp := mat.NewVecDense(kalmanStateSize, nil)
	tmp.MulVec(kalmanGain.T(), innovationVec)

	for i := range kf.mean {
		kf.mean[i] += float32(tmp.AtVec(i))
	}

	// covariance update
	temp := mat.NewDense(kalmanStateSize, kalmanMeasSize, nil)
	temp.Mul(kalmanGain.T(), projectedCov)

	temp2 := mat.NewDense(kalmanStateSize, kalmanStateSize, nil)
	temp2.Mul(temp, &kalmanGain)

	newCov := mat.NewDense(kalmanStateSize, kalmanStateSize, nil)
	newCov.Sub(kf.covariance, temp2)

	kf.covariance = newCov

	// landmarks pass through from the measurement unsmoothed
	kf.landmarks = nil
	if meas.Landmarks != nil {
		kf.landmarks = make([]Point, len(meas.Landmarks))
		copy(kf.landmarks, meas.Landmarks)
	}

	box := kf.currentBox()
	box.Prob = meas.Prob

	return box, nil
}

// GatingDistance returns the squared Mahalanobis distance between the
// predicted measurement and a detection box.  Used by the Registry for
// innovation based association
func (kf *Kalman) GatingDistance(meas Box) (float64, error) {

	projectedMean, projectedCov := kf.project()

	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return 0, errors.New("failed to factorize projected covariance")
	}

	measVec := [kalmanMeasSize]float32{meas.X, meas.Y, meas.W, meas.H}
	innovation := mat.NewVecDense(kalmanMeasSize, nil)

	for i := 0; i < kalmanMeasSize; i++ {
		innovation.SetVec(i, float64(measVec[i]-projectedMean[i]))
	}

	solved := mat.NewVecDense(kalmanMeasSize, nil)
	err := chol.SolveVecTo(solved, innovation)

	if err != nil {
		return 0, errors.Wrap(err, "failed to solve innovation system")
	}

	return mat.Dot(innovation, solved), nil
}

// project maps the state mean and covariance into measurement space
func (kf *Kalman) project() ([]float32, *mat.SymDense) {

	std := make([]float32, kalmanMeasSize)
	std[0] = kf.stdWeightPosition * kf.mean[3]
	std[1] = kf.stdWeightPosition * kf.mean[3]
	std[2] = kf.stdWeightPosition * kf.mean[3]
	std[3] = kf.stdWeightPosition * kf.mean[3]

	innovationCov := mat.NewSymDense(kalmanMeasSize, nil)

	for i, v := range std {
		innovationCov.SetSym(i, i, float64(v*v))
	}

	// project the mean
	meanData := make([]float64, kalmanStateSize)

	for i, v := range kf.mean {
		meanData[i] = float64(v)
	}

	projectedMeanVec := mat.NewVecDense(kalmanMeasSize, nil)
	projectedMeanVec.MulVec(kf.updateMat, mat.NewVecDense(kalmanStateSize, meanData))

	// project the covariance
	temp := mat.NewDense(kalmanMeasSize, kalmanStateSize, nil)
	temp.Mul(kf.updateMat, kf.covariance)
	temp2 := mat.NewDense(kalmanMeasSize, kalmanMeasSize, nil)
	temp2.Mul(temp, kf.updateMat.T())

	projectedCov := mat.NewSymDense(kalmanMeasSize, nil)

	for i := 0; i < kalmanMeasSize; i++ {
		for j := i; j < kalmanMeasSize; j++ {
			projectedCov.SetSym(i, j, temp2.At(i, j))
		}
	}

	projectedCov.AddSym(projectedCov, innovationCov)

	projectedMean := make([]float32, kalmanMeasSize)

	for i := 0; i < kalmanMeasSize; i++ {
		projectedMean[i] = float32(projectedMeanVec.AtVec(i))
	}

	return projectedMean, projectedCov
}

// currentBox converts the state mean into a Box
func (kf *Kalman) currentBox() Box {
	box := Box{
		X: kf.mean[0],
		Y: kf.mean[1],
		W: kf.mean[2],
		H: kf.mean[3],
	}
	if kf.landmarks != nil {
		box.Landmarks = make([]Point, len(kf.landmarks))
		copy(box.Landmarks, kf.landmarks)
	}
	return box
}

// Velocity returns the velocity components (vx, vy, vw, vh) of the state
func (kf *Kalman) Velocity() (float32, float32, float32, float32) {
	return kf.mean[4], kf.mean[5], kf.mean[6], kf.mean[7]
}
