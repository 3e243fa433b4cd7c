package facelock

import (
	"sync"
	"time"
)

// Timing holds the per stage processing times of a single frame
type Timing struct {
	// Detect is the time spent in face detection
	Detect time.Duration
	// Embed is the time spent in embedding inference
	Embed time.Duration
	// Track is the time spent in track association and smoothing
	Track time.Duration
	// Total is the end to end frame processing time
	Total time.Duration
}

// Stats accumulates frame timings and exposes their running averages.
// Safe for concurrent use
type Stats struct {
	mu     sync.Mutex
	frames int64
	sum    Timing
}

// NewStats creates an empty timing accumulator
func NewStats() *Stats {
	return &Stats{}
}

// Add accumulates the timing of one processed frame
func (s *Stats) Add(t Timing) {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.sum.Detect += t.Detect
	s.sum.Embed += t.Embed
	s.sum.Track += t.Track
	s.sum.Total += t.Total
}

// Frames returns the number of frames accumulated
func (s *Stats) Frames() int64 {

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frames
}

// Average returns the mean per stage timing over all accumulated frames
func (s *Stats) Average() Timing {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == 0 {
		return Timing{}
	}

	n := time.Duration(s.frames)

	return Timing{
		Detect: s.sum.Detect / n,
		Embed:  s.sum.Embed / n,
		Track:  s.sum.Track / n,
		Total:  s.sum.Total / n,
	}
}

// Reset clears all accumulated timings
func (s *Stats) Reset() {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = 0
	s.sum = Timing{}
}
