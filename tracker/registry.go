package tracker

import (
	"sort"
)

// EntryState represents the lifecycle state of a multi-target track entry
type EntryState int

const (
	// Tentative is a newly created track that has not yet been confirmed
	Tentative EntryState = iota
	// Confirmed is an established track with enough consecutive hits
	Confirmed
	// Lost is a confirmed track that has missed too many frames in a row
	Lost
	// Deleted marks a track whose slot is about to be reclaimed
	Deleted
)

// String returns the entry state name
func (s EntryState) String() string {
	switch s {
	case Tentative:
		return "TENTATIVE"
	case Confirmed:
		return "CONFIRMED"
	case Lost:
		return "LOST"
	case Deleted:
		return "DELETED"
	}
	return "UNKNOWN"
}

// Association selects the detection-to-track association metric used by
// the Registry
type Association int

const (
	// AssociateIoU matches by bounding box overlap
	AssociateIoU Association = iota
	// AssociateCentroid matches by center point distance
	AssociateCentroid
	// AssociateKalman matches by the Kalman innovation gating distance
	AssociateKalman
)

// RegistryParams holds the tuning parameters of the multi-target Registry
type RegistryParams struct {
	// MaxTracks bounds the number of simultaneously tracked entries
	MaxTracks int
	// MinHits is the number of consecutive hits before a tentative track
	// is confirmed
	MinHits int
	// MaxMisses is the number of consecutive misses before a confirmed
	// track is marked lost
	MaxMisses int
	// LostExpiry is the number of frames a lost track is retained before
	// its slot is reclaimed
	LostExpiry int
	// Association is the matching metric
	Association Association
	// IoUThreshold is the minimum overlap for an IoU association
	IoUThreshold float32
	// CentroidThreshold is the maximum normalized center distance for a
	// centroid association
	CentroidThreshold float32
	// GatingThreshold is the maximum squared Mahalanobis distance for a
	// Kalman association.  9.4877 is the chi-square 95th percentile for a
	// four dimensional measurement
	GatingThreshold float64
	// StdWeightPosition and StdWeightVelocity parameterize each entry's
	// Kalman filter
	StdWeightPosition float32
	StdWeightVelocity float32
}

// DefaultRegistryParams returns a parameter set suitable for tracking
// faces at video frame rates
func DefaultRegistryParams() RegistryParams {
	return RegistryParams{
		MaxTracks:         16,
		MinHits:           3,
		MaxMisses:         5,
		LostExpiry:        30,
		Association:       AssociateIoU,
		IoUThreshold:      0.3,
		CentroidThreshold: 0.2,
		GatingThreshold:   9.4877,
		StdWeightPosition: 1.0 / 20,
		StdWeightVelocity: 1.0 / 160,
	}
}

// Entry is a single track owned by the Registry
type Entry struct {
	id        int
	box       Box
	predicted Box
	motion    *Kalman
	state     EntryState
	hits      int
	misses    int
	age       int
	lostAge   int
}

// ID returns the unique track identifier
func (e *Entry) ID() int {
	return e.id
}

// Box returns the current fused box estimate
func (e *Entry) Box() Box {
	return e.box
}

// PredictedBox returns the box predicted by the motion model for the
// current frame
func (e *Entry) PredictedBox() Box {
	return e.predicted
}

// State returns the entry lifecycle state
func (e *Entry) State() EntryState {
	return e.state
}

// Hits returns the consecutive hit counter
func (e *Entry) Hits() int {
	return e.hits
}

// Misses returns the consecutive miss counter
func (e *Entry) Misses() int {
	return e.misses
}

// Age returns the number of frames since the entry was created
func (e *Entry) Age() int {
	return e.age
}

// Registry is a bounded multi-target tracker.  Each entry carries its own
// constant-velocity Kalman filter, tracks progress
// TENTATIVE -> CONFIRMED -> LOST -> DELETED and deleted slots are
// reclaimed for new detections
type Registry struct {
	params  RegistryParams
	entries []*Entry
	nextID  int
	frame   int
}

// NewRegistry creates an empty Registry
func NewRegistry(params RegistryParams) *Registry {
	return &Registry{
		params:  params,
		entries: make([]*Entry, 0, params.MaxTracks),
	}
}

// Len returns the number of live entries
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns all live entries
func (r *Registry) Entries() []*Entry {
	return r.entries
}

// Confirmed returns the confirmed entries only
func (r *Registry) Confirmed() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.state == Confirmed {
			out = append(out, e)
		}
	}
	return out
}

// Reset removes all entries
func (r *Registry) Reset() {
	r.entries = r.entries[:0]
	r.nextID = 0
	r.frame = 0
}

// Update runs one frame of association and lifecycle maintenance against
// the detector output and returns the confirmed entries.  Detections are
// matched greedily in order of descending confidence so that ties for the
// same track resolve to the highest confidence detection
func (r *Registry) Update(dets []Box) []*Entry {

	r.frame++

	// advance every motion model one step
	for _, e := range r.entries {
		e.predicted = e.motion.Predict()
		e.age++
	}

	// process detections from highest confidence down
	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Prob > dets[order[b]].Prob
	})

	matched := make(map[*Entry]bool)

	// detections may only associate with entries that existed before this
	// frame, never with entries opened earlier in the same pass
	existing := r.entries

	for _, di := range order {
		det := dets[di]

		best := r.bestMatch(existing, det, matched)

		if best != nil {
			r.hit(best, det)
			matched[best] = true
			continue
		}

		// no match, claim a free slot for a new tentative track
		if len(r.entries) < r.params.MaxTracks {
			r.nextID++
			motion := NewKalman(r.params.StdWeightPosition, r.params.StdWeightVelocity)
			motion.Init(det)
			e := &Entry{
				id:        r.nextID,
				box:       det.Clone(),
				predicted: det.Clone(),
				motion:    motion,
				state:     Tentative,
				hits:      1,
			}
			r.entries = append(r.entries, e)
			matched[e] = true
		}
	}

	// lifecycle maintenance for unmatched entries
	for _, e := range r.entries {
		if matched[e] {
			continue
		}

		e.misses++
		e.hits = 0

		switch e.state {
		case Tentative:
			// a tentative track must prove itself without interruption
			e.state = Deleted
		case Confirmed:
			if e.misses > r.params.MaxMisses {
				e.state = Lost
				e.lostAge = 0
			}
		case Lost:
			e.lostAge++
			if e.lostAge > r.params.LostExpiry {
				e.state = Deleted
			}
		}

		// coast on the prediction while unmatched
		e.box = e.predicted
	}

	// reclaim deleted slots
	live := r.entries[:0]
	for _, e := range r.entries {
		if e.state != Deleted {
			live = append(live, e)
		}
	}
	r.entries = live

	return r.Confirmed()
}

// hit folds a matched detection into an entry and advances its lifecycle
func (r *Registry) hit(e *Entry, det Box) {

	box, err := e.motion.Correct(det)
	if err != nil {
		// keep the prediction when the filter cannot be corrected
		box = e.predicted
	}

	e.box = box
	e.misses = 0
	e.lostAge = 0
	e.hits++

	switch e.state {
	case Tentative:
		if e.hits >= r.params.MinHits {
			e.state = Confirmed
		}
	case Lost:
		e.state = Confirmed
	}
}

// bestMatch finds the unreserved entry with the best association score for
// the detection, or nil when no entry passes the threshold
func (r *Registry) bestMatch(entries []*Entry, det Box, matched map[*Entry]bool) *Entry {

	var best *Entry

	switch r.params.Association {
	case AssociateCentroid:
		bestDist := r.params.CentroidThreshold
		for _, e := range entries {
			if matched[e] {
				continue
			}
			if d := CentroidDistance(e.predicted, det); d < bestDist {
				bestDist = d
				best = e
			}
		}

	case AssociateKalman:
		bestDist := r.params.GatingThreshold
		for _, e := range entries {
			if matched[e] {
				continue
			}
			d, err := e.motion.GatingDistance(det)
			if err != nil {
				continue
			}
			if d < bestDist {
				bestDist = d
				best = e
			}
		}

	case AssociateIoU:
		fallthrough
	default:
		bestIoU := r.params.IoUThreshold
		for _, e := range entries {
			if matched[e] {
				continue
			}
			if v := IoU(e.predicted, det); v > bestIoU {
				bestIoU = v
				best = e
			}
		}
	}

	return best
}
