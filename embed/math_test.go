package embed

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdentical(t *testing.T) {

	v := []float32{0.5, 0.5, 0.5, 0.5}

	if got := CosineSimilarity(v, v); !feq(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {

	a := []float32{1, 0}
	b := []float32{0, 1}

	if got := CosineSimilarity(a, b); !feq(got, 0) {
		t.Errorf("expected 0, got %f", got)
	}
}

func TestCosineSimilarityOpposite(t *testing.T) {

	a := []float32{1, 0}
	b := []float32{-1, 0}

	if got := CosineSimilarity(a, b); !feq(got, -1.0) {
		t.Errorf("expected -1.0, got %f", got)
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {

	a := []float32{0, 0}
	b := []float32{1, 0}

	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("expected 0 for zero magnitude operand, got %f", got)
	}
	if got := CosineSimilarity(b, a); got != 0 {
		t.Errorf("expected 0 for zero magnitude operand, got %f", got)
	}
}

func TestCosineSimilarityUnnormalized(t *testing.T) {

	// scaling either operand must not change the cosine
	a := []float32{3, 4}
	b := []float32{6, 8}

	if got := CosineSimilarity(a, b); !feq(got, 1.0) {
		t.Errorf("expected 1.0, got %f", got)
	}
}

func TestNormalizeVec(t *testing.T) {

	v := NormalizeVec([]float32{3, 4})

	if !feq(v[0], 0.6) || !feq(v[1], 0.8) {
		t.Errorf("unexpected result %v", v)
	}

	// zero vector passes through as a copy
	z := NormalizeVec([]float32{0, 0})

	if z[0] != 0 || z[1] != 0 {
		t.Errorf("expected zero vector unchanged, got %v", z)
	}
}

func TestDotMatchesCosineForUnitVectors(t *testing.T) {

	a := NormalizeVec([]float32{1, 2, 3})
	b := NormalizeVec([]float32{-2, 1, 0.5})

	if got, want := Dot(a, b), CosineSimilarity(a, b); !feq(got, want) {
		t.Errorf("dot %f != cosine %f", got, want)
	}
}

func TestDequantizeAndL2Normalize(t *testing.T) {

	q := []int8{10, -10}
	x := DequantizeAndL2Normalize(q, 0.5, 0)

	want := float32(1.0 / math.Sqrt2)

	if !feq(x[0], want) || !feq(x[1], -want) {
		t.Errorf("unexpected result %v", x)
	}
}

func TestDequantizeAndL2NormalizeZero(t *testing.T) {

	q := []int8{5, 5}
	x := DequantizeAndL2Normalize(q, 0.5, 5)

	// zero magnitude result is returned unnormalized
	if x[0] != 0 || x[1] != 0 {
		t.Errorf("expected zero vector, got %v", x)
	}
}

func TestDequantizeFloat16(t *testing.T) {

	// 0x3C00 is 1.0 and 0xC000 is -2.0 in IEEE 754 half precision
	x := DequantizeFloat16([]uint16{0x3C00, 0xC000})

	if !feq(x[0], 1.0) || !feq(x[1], -2.0) {
		t.Errorf("unexpected result %v", x)
	}
}

func TestFingerprintHashDeterministic(t *testing.T) {

	v := NormalizeVec([]float32{1, 2, 3, 4})

	h1, err := FingerprintHash(v)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h2, _ := FingerprintHash(v)

	if h1 != h2 {
		t.Errorf("hash not deterministic")
	}

	h3, _ := FingerprintHash(NormalizeVec([]float32{4, 3, 2, 1}))

	if h1 == h3 {
		t.Errorf("distinct vectors produced identical hashes")
	}
}
