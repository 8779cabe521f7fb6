package repository

import (
	"context"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

// CaptureRepository defines the persistence operations for drained captures
type CaptureRepository interface {
	// SaveCapture stores a capture and, when present, its analytics record
	SaveCapture(ctx context.Context, record *models.CaptureRecord) error

	// SaveCaptureWithResult stores a capture, its analytics and its OCR result atomically
	SaveCaptureWithResult(ctx context.Context, record *models.CaptureRecord, result *models.OCRResult) error

	// SaveFrameMetadata stores an analytics record for an existing capture
	SaveFrameMetadata(ctx context.Context, captureID string, metadata *models.FrameMetadata) error

	// SaveOCRResult stores an OCR result together with its code blocks
	SaveOCRResult(ctx context.Context, result *models.OCRResult) error

	// GetCapture retrieves a capture with its analytics record
	GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error)

	// ListCaptures returns the most recent captures first
	ListCaptures(ctx context.Context, limit int) ([]*models.CaptureRecord, error)

	// ListCodeBlocks returns the code blocks extracted for a capture in line order
	ListCodeBlocks(ctx context.Context, captureID string) ([]models.CodeBlock, error)
}
