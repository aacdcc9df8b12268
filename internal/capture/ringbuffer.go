package capture

import (
	"time"

	"github.com/pranalabs/breathloop/internal/breath"
)

// SampleBuffer is a fixed-capacity ring of fused color samples covering
// roughly the last few seconds of capture. Oldest samples are evicted on
// overflow.
type SampleBuffer struct {
	samples  []breath.ColorSample
	capacity int
	head     int // next write position
	size     int
}

// NewSampleBuffer creates a buffer holding capacity samples.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 1 {
		capacity = 180
	}
	return &SampleBuffer{
		samples:  make([]breath.ColorSample, capacity),
		capacity: capacity,
	}
}

// Add appends a sample, overwriting the oldest if at capacity.
func (b *SampleBuffer) Add(s breath.ColorSample) {
	b.samples[b.head] = s
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Len returns the number of samples currently buffered.
func (b *SampleBuffer) Len() int { return b.size }

// Snapshot returns a chronological copy of the buffered samples. The
// copy is what gets handed to the analysis worker, so a slow job never
// races buffer mutation.
func (b *SampleBuffer) Snapshot() []breath.ColorSample {
	out := make([]breath.ColorSample, 0, b.size)
	for i := b.size; i >= 1; i-- {
		idx := (b.head - i + b.capacity) % b.capacity
		out = append(out, b.samples[idx])
	}
	return out
}

// Duration returns the time span covered by the buffered samples.
func (b *SampleBuffer) Duration() time.Duration {
	if b.size < 2 {
		return 0
	}
	oldest := b.samples[(b.head-b.size+b.capacity)%b.capacity]
	newest := b.samples[(b.head-1+b.capacity)%b.capacity]
	return newest.At.Sub(oldest.At)
}
