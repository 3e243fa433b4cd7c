package tracker

import (
	"testing"
)

// feq compares floats with an epsilon tolerance
func feq(a, b, epsilon float32) bool {
	diff := a - b
	return diff < epsilon && diff > -epsilon
}

func TestIoUIdentical(t *testing.T) {
	b := NewBox(0.5, 0.5, 0.2, 0.2, 0.9)

	if got := IoU(b, b); !feq(got, 1.0, 1e-6) {
		t.Errorf("expected IoU of box with itself to be 1.0, got %f", got)
	}
}

func TestIoUSymmetric(t *testing.T) {
	cases := []struct {
		name string
		a, b Box
	}{
		{"overlapping", NewBox(0.5, 0.5, 0.2, 0.2, 1), NewBox(0.55, 0.55, 0.2, 0.2, 1)},
		{"disjoint", NewBox(0.2, 0.2, 0.1, 0.1, 1), NewBox(0.8, 0.8, 0.1, 0.1, 1)},
		{"contained", NewBox(0.5, 0.5, 0.4, 0.4, 1), NewBox(0.5, 0.5, 0.1, 0.1, 1)},
	}

	for _, tc := range cases {
		ab := IoU(tc.a, tc.b)
		ba := IoU(tc.b, tc.a)

		if !feq(ab, ba, 1e-6) {
			t.Errorf("%s: IoU not symmetric, got %f and %f", tc.name, ab, ba)
		}
	}
}

func TestIoUInvalidGeometry(t *testing.T) {
	valid := NewBox(0.5, 0.5, 0.2, 0.2, 1)

	cases := []struct {
		name string
		box  Box
	}{
		{"zero width", NewBox(0.5, 0.5, 0, 0.2, 1)},
		{"zero height", NewBox(0.5, 0.5, 0.2, 0, 1)},
		{"negative width", NewBox(0.5, 0.5, -0.2, 0.2, 1)},
		{"negative height", NewBox(0.5, 0.5, 0.2, -0.2, 1)},
	}

	for _, tc := range cases {
		if got := IoU(tc.box, valid); got != 0 {
			t.Errorf("%s: expected IoU 0, got %f", tc.name, got)
		}
		if got := IoU(valid, tc.box); got != 0 {
			t.Errorf("%s (swapped): expected IoU 0, got %f", tc.name, got)
		}
	}
}

func TestIoUDisjoint(t *testing.T) {
	a := NewBox(0.2, 0.2, 0.1, 0.1, 1)
	b := NewBox(0.8, 0.8, 0.1, 0.1, 1)

	if got := IoU(a, b); got != 0 {
		t.Errorf("expected IoU 0 for disjoint boxes, got %f", got)
	}
}

func TestIoUKnownOverlap(t *testing.T) {
	// two unit-quarter boxes offset by half their size overlap by a quarter
	// area each, intersection 0.1*0.2=0.02, union 0.04+0.04-0.02
	a := NewBox(0.5, 0.5, 0.2, 0.2, 1)
	b := NewBox(0.6, 0.5, 0.2, 0.2, 1)

	want := float32(0.02 / 0.06)

	if got := IoU(a, b); !feq(got, want, 1e-5) {
		t.Errorf("expected IoU %f, got %f", want, got)
	}
}

func TestCentroidDistance(t *testing.T) {
	a := NewBox(0.0, 0.0, 0.1, 0.1, 1)
	b := NewBox(0.3, 0.4, 0.1, 0.1, 1)

	if got := CentroidDistance(a, b); !feq(got, 0.5, 1e-6) {
		t.Errorf("expected centroid distance 0.5, got %f", got)
	}
}

func TestBoxClone(t *testing.T) {
	b := NewBox(0.5, 0.5, 0.2, 0.2, 0.9)
	b.Landmarks = []Point{{0.45, 0.45}, {0.55, 0.45}}

	c := b.Clone()
	c.Landmarks[0].X = 0

	if b.Landmarks[0].X != 0.45 {
		t.Errorf("clone shares landmark storage with original")
	}
}
