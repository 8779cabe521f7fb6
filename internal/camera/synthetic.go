package camera

import (
	"image"
	"image/color"
	"sync"
)

// SyntheticSource renders deterministic frames with dark text-like strokes on
// a light page. The strokes scroll one pixel per frame.
type SyntheticSource struct {
	width, height int

	mu       sync.Mutex
	frame    int
	released bool
}

func NewSyntheticSource(width, height int) *SyntheticSource {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &SyntheticSource{width: width, height: height}
}

func (s *SyntheticSource) Read() (image.Image, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, ErrReadFailed
	}
	n := s.frame
	s.frame++
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	paper := color.RGBA{225, 222, 210, 255}
	ink := color.RGBA{30, 30, 40, 255}
	for y := 0; y < s.height; y++ {
		line := (y / 12) % 3
		for x := 0; x < s.width; x++ {
			c := paper
			if line == 1 && ((x+n)/6)%7 != 0 && ((x+n)/2)%3 != 0 {
				c = ink
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (s *SyntheticSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

// Frames reports how many frames have been rendered.
func (s *SyntheticSource) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}
