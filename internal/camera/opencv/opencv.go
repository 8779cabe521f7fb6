// Package opencv reads frames from a local capture device through gocv.
package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/anime-shed/ocr-camera-go/internal/camera"
	"gocv.io/x/gocv"
)

// Settings requested from the device. Zero values leave the driver default.
type Settings struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

// Source is a camera.Source over a gocv.VideoCapture.
type Source struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// Open opens the device and applies the requested settings.
func Open(s Settings) (*Source, error) {
	capture, err := gocv.OpenVideoCapture(s.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", s.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %d is not opened", s.DeviceID)
	}

	if s.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
	}
	if s.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	}
	if s.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(s.FPS))
	}

	return &Source{capture: capture, mat: gocv.NewMat()}, nil
}

// Opener adapts Open to camera.Opener.
func Opener(s Settings) camera.Opener {
	return func(ctx context.Context) (camera.Source, error) {
		return Open(s)
	}
}

// Read grabs one frame and copies it out of the native buffer.
func (s *Source) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil, camera.ErrReadFailed
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, camera.ErrReadFailed
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrReadFailed, err)
	}
	return img, nil
}

func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.mat.Close()
	s.capture = nil
	return err
}
