package embed

import (
	"errors"
	"sync"
)

const (
	// VectorSize is the dimensionality of the face embedding vectors
	VectorSize = 128
	// DefaultCapacity is the default number of enrollment samples held in
	// the bank
	DefaultCapacity = 10
)

var (
	// ErrInvalidEmbedding is returned when an embedding has the wrong
	// dimensionality or zero magnitude
	ErrInvalidEmbedding = errors.New("invalid embedding vector")
	// ErrBankFull is returned when the bank already holds its maximum
	// number of enrollment samples
	ErrBankFull = errors.New("enrollment bank is full")
)

// Bank holds the enrollment embedding samples of the target identity and
// maintains their L2-normalized mean as the reference vector used for
// verification.  All methods are safe for concurrent use
type Bank struct {
	mu       sync.Mutex
	size     int
	capacity int
	samples  [][]float32
	target   []float32
}

// NewBank creates an enrollment bank for embeddings of the given
// dimensionality holding at most capacity samples
func NewBank(size, capacity int) *Bank {

	if size <= 0 {
		size = VectorSize
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Bank{
		size:     size,
		capacity: capacity,
		samples:  make([][]float32, 0, capacity),
		target:   make([]float32, size),
	}
}

// Add normalizes the given embedding and appends it to the bank, then
// recomputes the target reference vector.  It returns the number of
// samples held after the insert.  A vector of the wrong dimensionality or
// with zero magnitude is rejected with ErrInvalidEmbedding and when the
// bank is full ErrBankFull is returned, in both cases the bank is left
// unchanged
func (b *Bank) Add(vec []float32) (int, error) {

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(vec) != b.size {
		return len(b.samples), ErrInvalidEmbedding
	}

	var norm float32

	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return len(b.samples), ErrInvalidEmbedding
	}

	if len(b.samples) >= b.capacity {
		return len(b.samples), ErrBankFull
	}

	b.samples = append(b.samples, NormalizeVec(vec))
	b.recompute()

	return len(b.samples), nil
}

// recompute rebuilds the target reference vector as the L2-normalized
// mean of all samples.  Caller must hold the lock
func (b *Bank) recompute() {

	mean := make([]float32, b.size)

	if len(b.samples) == 0 {
		b.target = mean
		return
	}

	for _, s := range b.samples {
		for i, v := range s {
			mean[i] += v
		}
	}

	n := float32(len(b.samples))

	for i := range mean {
		mean[i] /= n
	}

	b.target = NormalizeVec(mean)
}

// Target returns a copy of the reference vector, the L2-normalized mean
// of all enrolled samples.  With no samples enrolled the zero vector is
// returned
func (b *Bank) Target() []float32 {

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float32, b.size)
	copy(out, b.target)

	return out
}

// Similarity returns the cosine similarity between the given embedding
// and the target reference vector.  With no samples enrolled, or a zero
// magnitude input, it returns 0
func (b *Bank) Similarity(vec []float32) float32 {

	b.mu.Lock()
	defer b.mu.Unlock()

	return CosineSimilarity(vec, b.target)
}

// Count returns the number of enrollment samples held
func (b *Bank) Count() int {

	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.samples)
}

// Capacity returns the maximum number of enrollment samples the bank can
// hold
func (b *Bank) Capacity() int {
	return b.capacity
}

// Size returns the embedding dimensionality the bank accepts
func (b *Bank) Size() int {
	return b.size
}

// Reset discards all enrollment samples and zeroes the target reference
// vector
func (b *Bank) Reset() {

	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = b.samples[:0]
	b.target = make([]float32, b.size)
}
