package audio

import (
	"sync"
)

// SampleRing is a thread-safe ring of the most recent float32 samples.
// Writes never block: once full, the oldest samples are overwritten.
type SampleRing struct {
	buffer []float32
	size   int
	write  int
	mu     sync.RWMutex
}

// NewSampleRing creates a ring holding at most size samples
func NewSampleRing(size int) *SampleRing {
	if size <= 0 {
		size = 1
	}
	return &SampleRing{
		buffer: make([]float32, size),
		size:   size,
	}
}

// Write appends samples, overwriting the oldest when the ring is full
func (r *SampleRing) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Only the tail can survive a write longer than the ring
	if len(samples) > r.size {
		samples = samples[len(samples)-r.size:]
	}
	for _, s := range samples {
		r.buffer[r.write] = s
		r.write = (r.write + 1) % r.size
	}
}

// Snapshot copies the ring contents, oldest first, into dst and returns the
// number of samples copied. Unfilled leading positions are zero.
func (r *SampleRing) Snapshot(dst []float32) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(dst)
	if n > r.size {
		n = r.size
	}
	// The newest n samples end just before r.write
	start := (r.write - n + r.size) % r.size
	for i := 0; i < n; i++ {
		dst[i] = r.buffer[(start+i)%r.size]
	}
	return n
}
