// Package embed provides face embedding inference and the enrollment bank
// used to verify a tracked face against the locked target identity.
package embed

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/x448/float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// CosineSimilarity returns the cosine of the angle between vectors a and b.
// If either vector has zero magnitude or the lengths differ it returns 0
func CosineSimilarity(a, b []float32) float32 {

	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (float32(math.Sqrt(float64(normA))) *
		float32(math.Sqrt(float64(normB))))
}

// Dot returns the dot product of two vectors.  For L2-normalized vectors
// this equals their cosine similarity
func Dot(a, b []float32) float32 {

	var dot float32

	for i := range a {
		dot += a[i] * b[i]
	}

	return dot
}

// NormalizeVec normalizes the input float32 slice to unit length and
// returns a new slice.  If the input vector has zero magnitude, it returns
// a copy unchanged
func NormalizeVec(v []float32) []float32 {

	norm := float32(0.0)

	for _, x := range v {
		norm += x * x
	}

	out := make([]float32, len(v))

	if norm == 0 {
		copy(out, v)
		return out
	}

	norm = float32(math.Sqrt(float64(norm)))

	for i, x := range v {
		out[i] = x / norm
	}

	return out
}

// DequantizeAndL2Normalize converts a quantized int8 vector "q" into a
// float32 vector, applies dequantization using the provided scale "s" and
// zero-point "z", and then normalizes the result to unit length using L2
// normalization.
//
// If the resulting vector has zero magnitude, the function returns the
// unnormalized dequantized vector.
func DequantizeAndL2Normalize(q []int8, s float32, z int32) []float32 {

	N := len(q)
	x := make([]float32, N)

	for i := 0; i < N; i++ {
		x[i] = float32(int32(q[i])-z) * s
	}

	var sumSquares float32

	for _, v := range x {
		sumSquares += v * v
	}

	norm := float32(math.Sqrt(float64(sumSquares)))

	if norm == 0 {
		// avoid /0
		return x
	}

	for i := 0; i < N; i++ {
		x[i] /= norm
	}

	return x
}

// DequantizeFloat16 converts a raw float16 bit vector into float32 values
// using the precomputed lookup table
func DequantizeFloat16(q []uint16) []float32 {

	x := make([]float32, len(q))

	for i, v := range q {
		x[i] = f16LookupTable[v]
	}

	return x
}

// FingerprintHash takes an L2-normalized []float32 and returns a
// hex-encoded SHA-256 hash of its binary representation
func FingerprintHash(feat []float32) (string, error) {

	buf := new(bytes.Buffer)

	for _, v := range feat {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return "", err
		}
	}

	sum := sha256.Sum256(buf.Bytes())

	return hex.EncodeToString(sum[:]), nil
}
