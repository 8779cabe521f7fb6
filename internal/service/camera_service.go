package service

import (
	"context"
	"image"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

// Pipeline is the part of the capture pipeline the control surface drives.
type Pipeline interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
	Status() models.PipelineStatus
	DrainCaptureQueue() []models.CaptureEntry
	CurrentEnhancedFrame() (*image.NRGBA, error)
}

// CameraService exposes start, stop, status and drain to remote callers.
type CameraService interface {
	Start(ctx context.Context) (*models.CameraControlResponse, error)
	Stop(ctx context.Context) (*models.CameraControlResponse, error)
	Status() models.PipelineStatus
	DrainCaptures() *models.DrainResponse
	CurrentFrame() (*image.NRGBA, error)
}

type cameraService struct {
	pipeline Pipeline
}

func NewCameraService(p Pipeline) CameraService {
	return &cameraService{pipeline: p}
}

func (s *cameraService) Start(ctx context.Context) (*models.CameraControlResponse, error) {
	if s.pipeline.Running() {
		return &models.CameraControlResponse{
			Status:  "already_running",
			Message: "Camera is already running",
			Stats:   s.pipeline.Status(),
		}, nil
	}

	if err := s.pipeline.Start(ctx); err != nil {
		return nil, err
	}
	return &models.CameraControlResponse{
		Status:  "started",
		Message: "Camera started successfully",
		Stats:   s.pipeline.Status(),
	}, nil
}

func (s *cameraService) Stop(ctx context.Context) (*models.CameraControlResponse, error) {
	if !s.pipeline.Running() {
		return &models.CameraControlResponse{
			Status:  "not_running",
			Message: "Camera is not running",
			Stats:   s.pipeline.Status(),
		}, nil
	}

	if err := s.pipeline.Stop(); err != nil {
		return nil, err
	}
	return &models.CameraControlResponse{
		Status:  "stopped",
		Message: "Camera stopped successfully",
		Stats:   s.pipeline.Status(),
	}, nil
}

func (s *cameraService) Status() models.PipelineStatus {
	return s.pipeline.Status()
}

func (s *cameraService) DrainCaptures() *models.DrainResponse {
	captures := s.pipeline.DrainCaptureQueue()
	return &models.DrainResponse{Count: len(captures), Captures: captures}
}

func (s *cameraService) CurrentFrame() (*image.NRGBA, error) {
	return s.pipeline.CurrentEnhancedFrame()
}
