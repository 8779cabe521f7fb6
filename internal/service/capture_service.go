package service

import (
	"context"
	"errors"
	"io"

	apperrors "github.com/anime-shed/ocr-camera-go/internal/errors"
	"github.com/anime-shed/ocr-camera-go/internal/repository"
	"github.com/anime-shed/ocr-camera-go/internal/storage"
	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

const maxListLimit = 500

// CaptureService reads persisted captures.
type CaptureService interface {
	ListCaptures(ctx context.Context, limit int) ([]*models.CaptureRecord, error)
	GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error)
	ListCodeBlocks(ctx context.Context, id string) ([]models.CodeBlock, error)
	OpenArtifact(ctx context.Context, id string) (io.ReadCloser, error)
}

type captureService struct {
	repo      repository.CaptureRepository
	artifacts storage.ArtifactStore
}

func NewCaptureService(repo repository.CaptureRepository, artifacts storage.ArtifactStore) CaptureService {
	return &captureService{repo: repo, artifacts: artifacts}
}

func (s *captureService) ListCaptures(ctx context.Context, limit int) ([]*models.CaptureRecord, error) {
	if limit < 0 || limit > maxListLimit {
		return nil, apperrors.NewValidationError("limit must be between 0 and 500", nil)
	}
	records, err := s.repo.ListCaptures(ctx, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list captures", err)
	}
	return records, nil
}

func (s *captureService) GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error) {
	record, err := s.repo.GetCapture(ctx, id)
	if errors.Is(err, repository.ErrCaptureNotFound) {
		return nil, apperrors.NewNotFoundError("capture not found", err)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load capture", err)
	}
	return record, nil
}

// ListCodeBlocks fails with not found for an unknown capture rather than
// returning an empty list.
func (s *captureService) ListCodeBlocks(ctx context.Context, id string) ([]models.CodeBlock, error) {
	if _, err := s.GetCapture(ctx, id); err != nil {
		return nil, err
	}
	blocks, err := s.repo.ListCodeBlocks(ctx, id)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to list code blocks", err)
	}
	return blocks, nil
}

func (s *captureService) OpenArtifact(ctx context.Context, id string) (io.ReadCloser, error) {
	record, err := s.GetCapture(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Artifact == "" {
		return nil, apperrors.NewNotFoundError("capture has no artifact", nil)
	}

	rc, err := s.artifacts.Open(ctx, record.Artifact)
	if errors.Is(err, storage.ErrArtifactNotFound) {
		return nil, apperrors.NewNotFoundError("artifact not found", err)
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to open artifact", err)
	}
	return rc, nil
}
