package tracker

import (
	"time"
)

// State represents the lifecycle state of a single-target Track
type State int

const (
	// Idle means no target is currently locked
	Idle State = 0
	// Tracking means the track holds a locked target box
	Tracking State = 1
)

// String returns the state name
func (s State) String() string {
	if s == Tracking {
		return "TRACKING"
	}
	return "IDLE"
}

// simHistorySize is the number of recent similarity scores kept for
// smoothing the verification decision
const simHistorySize = 5

// TrackParams holds the tuning parameters of a single-target Track
type TrackParams struct {
	// ConfThreshold is the detection confidence at or above which a
	// detection is accepted as a direct match without spatial checks
	ConfThreshold float32
	// IoUThreshold is the minimum overlap with the current box for a lower
	// confidence detection to re-acquire the track
	IoUThreshold float32
	// MaxMisses is the number of consecutive frames without any matching
	// detection before the track falls back to Idle
	MaxMisses int
	// SmoothAlpha is the EMA weight used by the default motion model
	SmoothAlpha float32
	// MaxOutputBoxes caps the size of the annotated detection list the
	// track appends its box to
	MaxOutputBoxes int
}

// DefaultTrackParams returns the default track tuning parameters
func DefaultTrackParams() TrackParams {
	return TrackParams{
		ConfThreshold:  0.7,
		IoUThreshold:   0.3,
		MaxMisses:      5,
		SmoothAlpha:    0.5,
		MaxOutputBoxes: 10,
	}
}

// Track is the single-target track holding the system's belief about the
// location and identity confidence of the locked subject
type Track struct {
	params TrackParams
	motion Motion
	state  State
	box    Box
	misses int

	// similarity bookkeeping
	simHistory [simHistorySize]float32
	simIndex   int
	simCount   int
	similarity float32

	createdAt  time.Time
	updatedAt  time.Time
	verifiedAt time.Time
}

// NewTrack creates an Idle track with the given parameters and the default
// EMA motion model
func NewTrack(params TrackParams) *Track {
	return &Track{
		params: params,
		motion: NewEMA(params.SmoothAlpha),
	}
}

// NewTrackWithMotion creates an Idle track using a caller supplied motion
// model such as a Kalman filter
func NewTrackWithMotion(params TrackParams, motion Motion) *Track {
	return &Track{
		params: params,
		motion: motion,
	}
}

// StateOf returns the current lifecycle state
func (t *Track) StateOf() State {
	return t.state
}

// Box returns the current smoothed box estimate
func (t *Track) Box() Box {
	return t.box
}

// Misses returns the consecutive miss counter
func (t *Track) Misses() int {
	return t.misses
}

// Similarity returns the smoothed identity similarity score
func (t *Track) Similarity() float32 {
	return t.similarity
}

// CreatedAt returns the time the current lock was established
func (t *Track) CreatedAt() time.Time {
	return t.createdAt
}

// UpdatedAt returns the time of the last successful box update
func (t *Track) UpdatedAt() time.Time {
	return t.updatedAt
}

// VerifiedAt returns the time of the last successful identity verification
func (t *Track) VerifiedAt() time.Time {
	return t.verifiedAt
}

// Lock initializes the track from a verified candidate box, recording the
// similarity score and verification time
func (t *Track) Lock(box Box, similarity float32, now time.Time) {
	t.motion.Init(box)
	t.box = box.Clone()
	t.state = Tracking
	t.misses = 0
	t.resetSimilarity()
	t.RecordSimilarity(similarity)
	t.createdAt = now
	t.updatedAt = now
	t.verifiedAt = now
}

// MarkVerified records a successful re-verification at the given time
func (t *Track) MarkVerified(similarity float32, now time.Time) {
	t.RecordSimilarity(similarity)
	t.verifiedAt = now
}

// RecordSimilarity pushes a similarity measurement into the history ring
// and recomputes the smoothed score as the mean of recent entries
func (t *Track) RecordSimilarity(similarity float32) {

	t.simHistory[t.simIndex] = similarity
	t.simIndex = (t.simIndex + 1) % simHistorySize

	if t.simCount < simHistorySize {
		t.simCount++
	}

	var sum float32
	for i := 0; i < t.simCount; i++ {
		sum += t.simHistory[i]
	}

	t.similarity = sum / float32(t.simCount)
}

// resetSimilarity clears the similarity history
func (t *Track) resetSimilarity() {
	t.simIndex = 0
	t.simCount = 0
	t.similarity = 0
}

// Reset drops the lock and returns the track to Idle
func (t *Track) Reset() {
	t.state = Idle
	t.misses = 0
	t.resetSimilarity()
}

// Process runs one frame of the track lifecycle against the detector
// output and returns the detection list with the tracked box appended when
// a lock is held.  Detection order is preserved from the detector, the
// first detection at or above the confidence threshold wins outright.
// Lower confidence detections can only re-acquire an existing lock through
// spatial overlap
func (t *Track) Process(dets []Box, now time.Time) []Box {

	updated := false

	// first pass, a direct high confidence match beats any spatial match
	for i := range dets {
		d := &dets[i]

		if d.Prob >= t.params.ConfThreshold {
			if t.state == Tracking {
				t.smoothTo(*d, now)
			} else {
				t.motion.Init(*d)
				t.box = d.Clone()
				t.state = Tracking
				t.createdAt = now
				t.updatedAt = now
			}
			t.misses = 0
			updated = true
			break
		}
	}

	// second pass, re-acquire an existing lock through box overlap
	if !updated && t.state == Tracking {
		for i := range dets {
			d := &dets[i]

			if IoU(t.box, *d) > t.params.IoUThreshold {
				t.smoothTo(*d, now)
				t.misses = 0
				updated = true
				break
			}
		}
	}

	if t.state == Tracking && !updated {
		t.misses++
		if t.misses > t.params.MaxMisses {
			t.state = Idle
			t.misses = 0
			t.resetSimilarity()
		}
	}

	if t.state == Tracking && len(dets) < t.params.MaxOutputBoxes {
		out := t.box.Clone()
		out.Prob = t.similarity
		dets = append(dets, out)
	}

	return dets
}

// smoothTo folds a matched detection into the motion model
func (t *Track) smoothTo(meas Box, now time.Time) {
	t.motion.Predict()

	box, err := t.motion.Correct(meas)
	if err != nil {
		// a failed correction degrades to keeping the previous estimate
		// rather than dropping the lock
		return
	}

	t.box = box
	t.updatedAt = now
}
