package pipeline

import (
	"sync"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

// CaptureQueue hands every appended entry to exactly one Drain call.
type CaptureQueue struct {
	mu      sync.Mutex
	entries []models.CaptureEntry
}

func NewCaptureQueue() *CaptureQueue {
	return &CaptureQueue{}
}

func (q *CaptureQueue) Append(entry models.CaptureEntry) {
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	q.mu.Unlock()
}

// Drain empties the queue and returns its prior contents in append order.
// An empty queue yields an empty, non-nil slice.
func (q *CaptureQueue) Drain() []models.CaptureEntry {
	q.mu.Lock()
	drained := q.entries
	q.entries = nil
	q.mu.Unlock()

	if drained == nil {
		return []models.CaptureEntry{}
	}
	return drained
}

func (q *CaptureQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
