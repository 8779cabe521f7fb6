package pipeline

import (
	"image"
	"sync"
)

// DefaultRingCapacity is the number of recent frames kept for inspection.
const DefaultRingCapacity = 5

// FrameBuffer holds the latest published frame plus a bounded history.
// Published frames are never mutated, so readers share them without copying.
type FrameBuffer struct {
	mu       sync.RWMutex
	ring     []image.Image
	head     int // index of the oldest entry
	size     int
	current  image.Image
	sequence uint64
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &FrameBuffer{ring: make([]image.Image, capacity)}
}

// Publish makes frame the current frame and pushes it into the history,
// evicting the oldest entry when full. It returns the frame's sequence number.
func (b *FrameBuffer) Publish(frame image.Image) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.ring)
	if b.size < capacity {
		b.ring[(b.head+b.size)%capacity] = frame
		b.size++
	} else {
		b.ring[b.head] = frame
		b.head = (b.head + 1) % capacity
	}
	b.current = frame
	b.sequence++
	return b.sequence
}

// Current returns the latest frame and its sequence number, or nil and 0
// before the first publish.
func (b *FrameBuffer) Current() (image.Image, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.sequence
}

// History returns the buffered frames oldest first.
func (b *FrameBuffer) History() []image.Image {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]image.Image, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	return out
}

func (b *FrameBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *FrameBuffer) Capacity() int {
	return len(b.ring)
}
