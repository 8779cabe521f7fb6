package pipeline

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

const fpsWindow = time.Second

// Stats are the pipeline counters. Counters only grow and survive restarts.
// Snapshot never blocks the loops.
type Stats struct {
	totalFrames    atomic.Int64
	enhancedFrames atomic.Int64
	detectedText   atomic.Int64
	autoCaptures   atomic.Int64
	fpsBits        atomic.Uint64

	windowMu     sync.Mutex
	windowStart  time.Time
	windowFrames int64
}

// frameRead counts one acquired frame and closes the fps window once at
// least a second has elapsed since it opened.
func (s *Stats) frameRead(now time.Time) {
	s.totalFrames.Add(1)

	s.windowMu.Lock()
	defer s.windowMu.Unlock()

	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	s.windowFrames++
	if elapsed := now.Sub(s.windowStart); elapsed >= fpsWindow {
		fps := float64(s.windowFrames) / elapsed.Seconds()
		s.fpsBits.Store(math.Float64bits(fps))
		s.windowFrames = 0
		s.windowStart = now
	}
}

// resetWindow starts a fresh fps window, used when the camera is reopened.
func (s *Stats) resetWindow() {
	s.windowMu.Lock()
	s.windowStart = time.Time{}
	s.windowFrames = 0
	s.windowMu.Unlock()
	s.fpsBits.Store(0)
}

func (s *Stats) Snapshot() models.PipelineStats {
	return models.PipelineStats{
		TotalFrames:    s.totalFrames.Load(),
		EnhancedFrames: s.enhancedFrames.Load(),
		DetectedText:   s.detectedText.Load(),
		AutoCaptures:   s.autoCaptures.Load(),
		FPS:            math.Round(math.Float64frombits(s.fpsBits.Load())*10) / 10,
	}
}
