package tracker

import (
	"testing"
)

func testRegistryParams() RegistryParams {
	p := DefaultRegistryParams()
	p.MinHits = 3
	p.MaxMisses = 2
	p.LostExpiry = 3
	return p
}

func TestRegistryConfirmAfterMinHits(t *testing.T) {
	r := NewRegistry(testRegistryParams())
	det := []Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)}

	// first two frames remain tentative
	for i := 0; i < 2; i++ {
		confirmed := r.Update(det)
		if len(confirmed) != 0 {
			t.Fatalf("frame %d: expected no confirmed tracks, got %d", i, len(confirmed))
		}
	}

	confirmed := r.Update(det)

	if len(confirmed) != 1 {
		t.Fatalf("expected 1 confirmed track, got %d", len(confirmed))
	}
	if confirmed[0].State() != Confirmed {
		t.Errorf("expected state CONFIRMED, got %s", confirmed[0].State())
	}
}

func TestRegistryTentativeDroppedOnMiss(t *testing.T) {
	r := NewRegistry(testRegistryParams())

	r.Update([]Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)})
	r.Update(nil)

	if r.Len() != 0 {
		t.Errorf("expected tentative track reclaimed after a miss, got %d entries", r.Len())
	}
}

func TestRegistryLostAndExpired(t *testing.T) {
	p := testRegistryParams()
	r := NewRegistry(p)
	det := []Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)}

	// confirm the track
	for i := 0; i < p.MinHits; i++ {
		r.Update(det)
	}

	// miss until the confirmed track goes lost
	for i := 0; i <= p.MaxMisses; i++ {
		r.Update(nil)
	}

	if got := r.Entries()[0].State(); got != Lost {
		t.Fatalf("expected state LOST, got %s", got)
	}

	// keep missing until the lost track expires and the slot is reclaimed
	for i := 0; i <= p.LostExpiry; i++ {
		r.Update(nil)
	}

	if r.Len() != 0 {
		t.Errorf("expected expired track reclaimed, got %d entries", r.Len())
	}
}

func TestRegistryReacquireLostTrack(t *testing.T) {
	p := testRegistryParams()
	r := NewRegistry(p)
	det := []Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)}

	for i := 0; i < p.MinHits; i++ {
		r.Update(det)
	}

	id := r.Entries()[0].ID()

	for i := 0; i <= p.MaxMisses; i++ {
		r.Update(nil)
	}

	confirmed := r.Update(det)

	if len(confirmed) != 1 {
		t.Fatalf("expected re-acquired track, got %d confirmed", len(confirmed))
	}
	if confirmed[0].ID() != id {
		t.Errorf("expected track to keep id %d, got %d", id, confirmed[0].ID())
	}
}

func TestRegistryBoundedSlots(t *testing.T) {
	p := testRegistryParams()
	p.MaxTracks = 2
	r := NewRegistry(p)

	dets := []Box{
		NewBox(0.1, 0.1, 0.05, 0.05, 0.9),
		NewBox(0.5, 0.5, 0.05, 0.05, 0.9),
		NewBox(0.9, 0.9, 0.05, 0.05, 0.9),
	}

	r.Update(dets)

	if r.Len() != 2 {
		t.Errorf("expected registry capped at 2 entries, got %d", r.Len())
	}
}

func TestRegistryTiesBrokenByConfidence(t *testing.T) {
	p := testRegistryParams()
	r := NewRegistry(p)

	for i := 0; i < p.MinHits; i++ {
		r.Update([]Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)})
	}

	// two detections both overlap the track, the higher confidence one
	// must claim it and the other must open a new tentative entry
	dets := []Box{
		NewBox(0.52, 0.5, 0.2, 0.2, 0.4),
		NewBox(0.5, 0.52, 0.2, 0.2, 0.8),
	}
	confirmed := r.Update(dets)

	if len(confirmed) != 1 {
		t.Fatalf("expected 1 confirmed track, got %d", len(confirmed))
	}
	if box := confirmed[0].Box(); box.Y <= 0.5 {
		t.Errorf("expected higher confidence detection to win association, box y=%f", box.Y)
	}
	if r.Len() != 2 {
		t.Errorf("expected losing detection to open a new entry, got %d", r.Len())
	}
}

func TestRegistryCentroidAssociation(t *testing.T) {
	p := testRegistryParams()
	p.Association = AssociateCentroid
	r := NewRegistry(p)

	for i := 0; i < p.MinHits; i++ {
		r.Update([]Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)})
	}

	// nearby center within threshold keeps the same track
	confirmed := r.Update([]Box{NewBox(0.55, 0.5, 0.2, 0.2, 0.9)})

	if len(confirmed) != 1 || r.Len() != 1 {
		t.Errorf("expected centroid association to match, confirmed=%d entries=%d",
			len(confirmed), r.Len())
	}
}

func TestRegistryKalmanAssociation(t *testing.T) {
	p := testRegistryParams()
	p.Association = AssociateKalman
	r := NewRegistry(p)

	for i := 0; i < p.MinHits; i++ {
		r.Update([]Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)})
	}

	confirmed := r.Update([]Box{NewBox(0.51, 0.5, 0.2, 0.2, 0.9)})

	if len(confirmed) != 1 || r.Len() != 1 {
		t.Errorf("expected innovation association to match, confirmed=%d entries=%d",
			len(confirmed), r.Len())
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry(testRegistryParams())

	r.Update([]Box{NewBox(0.5, 0.5, 0.2, 0.2, 0.9)})
	r.Reset()

	if r.Len() != 0 {
		t.Errorf("expected empty registry after reset, got %d entries", r.Len())
	}
}
