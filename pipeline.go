package facelock

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/edgelock/go-facelock/embed"
	"github.com/edgelock/go-facelock/tracker"
	"gocv.io/x/gocv"
)

// Phase is the identity lock state of the pipeline
type Phase int

const (
	// Search scans each frame for a face candidate
	Search Phase = iota
	// Verify checks the candidate face against the enrolled identity
	Verify
	// Track follows the locked face across frames
	Track
)

// String returns a human readable name of the phase
func (p Phase) String() string {

	switch p {
	case Search:
		return "SEARCH"
	case Verify:
		return "VERIFY"
	case Track:
		return "TRACK"
	}

	return "UNKNOWN"
}

// Result holds the outcome of processing a single frame
type Result struct {
	// Phase is the identity lock state after the frame was processed
	Phase Phase
	// Detections are the raw face boxes found in the frame, plus the
	// smoothed track box appended last when locked
	Detections []tracker.Box
	// Locked reports whether the target identity is currently tracked
	Locked bool
	// Target is the smoothed box of the locked track, valid when Locked
	Target tracker.Box
	// Similarity is the smoothed identity similarity of the locked track
	Similarity float32
	// Timing holds the per stage processing times of the frame
	Timing Timing
}

// Pipeline runs the face detection, identity verification and tracking
// loop over video frames.  Methods are safe for concurrent use so the
// processing loop and control endpoints can share one instance
type Pipeline struct {
	mu       sync.Mutex
	detector Detector
	embedder Embedder
	bank     *embed.Bank
	track    *tracker.Track
	phase    Phase
	// candidate is the face box selected during search, pending
	// verification
	candidate tracker.Box
	// frame plane dimensions used to map normalized boxes to pixels
	width  int
	height int
	// simThreshold is the minimum cosine similarity for a verification
	// to pass
	simThreshold float32
	// reverify is how long a locked track may run before its identity is
	// checked again
	reverify time.Duration
	stats    *Stats
}

// NewPipeline creates a pipeline processing frames of the given pixel
// dimensions
func NewPipeline(cfg Config, detector Detector, embedder Embedder) *Pipeline {

	bank := embed.NewBank(cfg.Recognition.VectorSize,
		cfg.Recognition.BankCapacity)

	return &Pipeline{
		detector:     detector,
		embedder:     embedder,
		bank:         bank,
		track:        tracker.NewTrack(cfg.TrackParams()),
		phase:        Search,
		width:        cfg.Camera.Width,
		height:       cfg.Camera.Height,
		simThreshold: cfg.Recognition.SimilarityThreshold,
		reverify:     cfg.ReverifyInterval(),
		stats:        NewStats(),
	}
}

// Process runs one frame through the pipeline and returns the detections
// and lock state
func (p *Pipeline) Process(frame gocv.Mat, now time.Time) (Result, error) {

	p.mu.Lock()
	defer p.mu.Unlock()

	var timing Timing
	start := time.Now()

	dets, err := p.detector.Detect(frame)

	if err != nil {
		return Result{Phase: p.phase}, fmt.Errorf("detection failed: %w", err)
	}

	timing.Detect = time.Since(start)

	switch p.phase {

	case Search:
		p.stepSearch(dets)

	case Verify:
		if err := p.stepVerify(frame, dets, now, &timing); err != nil {
			return Result{Phase: p.phase}, err
		}

	case Track:
		trackStart := time.Now()
		dets = p.track.Process(dets, now)
		timing.Track = time.Since(trackStart)

		if p.track.StateOf() == tracker.Idle {
			p.phase = Search
		} else if now.Sub(p.track.VerifiedAt()) > p.reverify {
			if err := p.stepReverify(frame, now, &timing); err != nil {
				return Result{Phase: p.phase}, err
			}
		}
	}

	timing.Total = time.Since(start)
	p.stats.Add(timing)

	res := Result{
		Phase:      p.phase,
		Detections: dets,
		Timing:     timing,
	}

	if p.phase == Track && p.track.StateOf() == tracker.Tracking {
		res.Locked = true
		res.Target = p.track.Box()
		res.Similarity = p.track.Similarity()
	}

	return res, nil
}

// stepSearch selects the strongest face candidate from the detections and
// moves to verification when one is found
func (p *Pipeline) stepSearch(dets []tracker.Box) {

	best, ok := strongest(dets)

	if !ok {
		return
	}

	p.candidate = best.Clone()
	p.phase = Verify
}

// stepVerify embeds the candidate face and compares it against the
// enrollment target.  A passing similarity locks the track, anything else
// returns to search
func (p *Pipeline) stepVerify(frame gocv.Mat, dets []tracker.Box,
	now time.Time, timing *Timing) error {

	// re-find the search candidate in this frame's detections by overlap
	best, ok := overlapping(dets, p.candidate)

	if !ok {
		p.phase = Search
		return nil
	}

	sim, err := p.similarity(frame, best, timing)

	if err != nil {
		p.phase = Search
		return fmt.Errorf("verification failed: %w", err)
	}

	if sim < p.simThreshold {
		// not the enrolled identity, keep searching
		p.phase = Search
		return nil
	}

	p.track.Lock(best, sim, now)
	p.phase = Track

	return nil
}

// stepReverify re-checks the locked track's identity against the
// enrollment target.  A failed check drops the lock and returns to search
func (p *Pipeline) stepReverify(frame gocv.Mat, now time.Time,
	timing *Timing) error {

	box := p.track.Box()

	sim, err := p.similarity(frame, box, timing)

	if err != nil {
		return fmt.Errorf("re-verification failed: %w", err)
	}

	if sim < p.simThreshold {
		p.track.Reset()
		p.phase = Search
		return nil
	}

	p.track.MarkVerified(sim, now)

	return nil
}

// similarity embeds the face inside the given box and returns its cosine
// similarity against the enrollment target
func (p *Pipeline) similarity(frame gocv.Mat, box tracker.Box,
	timing *Timing) (float32, error) {

	start := time.Now()

	vec, err := p.embedder.Embed(frame, p.regionOf(box), p.eyesOf(box))

	timing.Embed += time.Since(start)

	if err != nil {
		return 0, err
	}

	return p.bank.Similarity(vec), nil
}

// Enroll embeds the face inside the given pixel region and adds it to the
// enrollment bank, returning the number of samples held
func (p *Pipeline) Enroll(frame gocv.Mat, region image.Rectangle,
	eyes []image.Point) (int, error) {

	p.mu.Lock()
	defer p.mu.Unlock()

	vec, err := p.embedder.Embed(frame, region, eyes)

	if err != nil {
		return p.bank.Count(), fmt.Errorf("enrollment failed: %w", err)
	}

	return p.bank.Add(vec)
}

// EnrollStrongest embeds the strongest detected face in the frame and
// adds it to the enrollment bank, returning the number of samples held
func (p *Pipeline) EnrollStrongest(frame gocv.Mat) (int, error) {

	p.mu.Lock()
	defer p.mu.Unlock()

	dets, err := p.detector.Detect(frame)

	if err != nil {
		return p.bank.Count(), fmt.Errorf("enrollment detection failed: %w", err)
	}

	best, ok := strongest(dets)

	if !ok {
		return p.bank.Count(), fmt.Errorf("no face found to enroll")
	}

	vec, err := p.embedder.Embed(frame, p.regionOf(best), p.eyesOf(best))

	if err != nil {
		return p.bank.Count(), fmt.Errorf("enrollment failed: %w", err)
	}

	return p.bank.Add(vec)
}

// ResetEnrollment discards all enrollment samples and drops any active
// lock
func (p *Pipeline) ResetEnrollment() {

	p.mu.Lock()
	defer p.mu.Unlock()

	p.bank.Reset()
	p.track.Reset()
	p.phase = Search
}

// ResetLock drops any active lock and returns to search, keeping the
// enrollment samples
func (p *Pipeline) ResetLock() {

	p.mu.Lock()
	defer p.mu.Unlock()

	p.track.Reset()
	p.phase = Search
}

// EnrolledCount returns the number of enrollment samples held
func (p *Pipeline) EnrolledCount() int {

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.bank.Count()
}

// PhaseOf returns the current identity lock state
func (p *Pipeline) PhaseOf() Phase {

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.phase
}

// Stats returns the accumulated per stage timing statistics
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// regionOf maps a normalized box to a pixel rectangle on the frame plane
func (p *Pipeline) regionOf(box tracker.Box) image.Rectangle {

	w := float32(p.width)
	h := float32(p.height)

	return image.Rect(
		int(box.TLX()*w), int(box.TLY()*h),
		int(box.BRX()*w), int(box.BRY()*h),
	)
}

// eyesOf maps the first two face landmarks, the left and right eye, to
// pixel points on the frame plane.  Boxes without landmarks return nil
func (p *Pipeline) eyesOf(box tracker.Box) []image.Point {

	if len(box.Landmarks) < 2 {
		return nil
	}

	w := float32(p.width)
	h := float32(p.height)

	return []image.Point{
		image.Pt(int(box.Landmarks[0].X*w), int(box.Landmarks[0].Y*h)),
		image.Pt(int(box.Landmarks[1].X*w), int(box.Landmarks[1].Y*h)),
	}
}

// overlapping returns the detection with the greatest overlap against the
// reference box.  It reports false when no detection overlaps
func overlapping(dets []tracker.Box, ref tracker.Box) (tracker.Box, bool) {

	var best tracker.Box
	var bestIoU float32

	for _, d := range dets {
		if iou := tracker.IoU(d, ref); iou > bestIoU {
			bestIoU = iou
			best = d
		}
	}

	return best, bestIoU > 0
}

// strongest returns the highest confidence detection
func strongest(dets []tracker.Box) (tracker.Box, bool) {

	if len(dets) == 0 {
		return tracker.Box{}, false
	}

	best := dets[0]

	for _, d := range dets[1:] {
		if d.Prob > best.Prob {
			best = d
		}
	}

	return best, true
}
