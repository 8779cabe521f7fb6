package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anime-shed/ocr-camera-go/internal/analyzer"
	"github.com/anime-shed/ocr-camera-go/internal/classifier"
	apperrors "github.com/anime-shed/ocr-camera-go/internal/errors"
	"github.com/anime-shed/ocr-camera-go/internal/logger"
	"github.com/anime-shed/ocr-camera-go/internal/ocr"
	"github.com/anime-shed/ocr-camera-go/internal/storage"
	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"github.com/anime-shed/ocr-camera-go/pkg/validation"
	"github.com/sirupsen/logrus"
)

// OracleProvider returns an OCR engine for a language set. An empty set
// means the configured default.
type OracleProvider interface {
	ForLanguages(languages []string) (ocr.Oracle, error)
}

// DocumentService runs still images through the same classifier as the
// live pipeline.
type DocumentService interface {
	Analyze(ctx context.Context, imageURL string, languages []string) (*models.DocumentAnalysis, error)
}

type documentService struct {
	urls     *validation.URLValidator
	quality  *validation.QualityValidator
	fetcher  storage.ImageFetcher
	metrics  analyzer.MetricsCalculator
	oracles  OracleProvider
	deadline time.Duration
}

func NewDocumentService(
	urls *validation.URLValidator,
	quality *validation.QualityValidator,
	fetcher storage.ImageFetcher,
	metrics analyzer.MetricsCalculator,
	oracles OracleProvider,
	fetchTimeout time.Duration,
) DocumentService {
	return &documentService{
		urls:     urls,
		quality:  quality,
		fetcher:  fetcher,
		metrics:  metrics,
		oracles:  oracles,
		deadline: fetchTimeout,
	}
}

func (s *documentService) Analyze(ctx context.Context, imageURL string, languages []string) (*models.DocumentAnalysis, error) {
	start := time.Now()

	if err := s.urls.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	oracle, err := s.oracles.ForLanguages(languages)
	if err != nil {
		return nil, apperrors.NewValidationError("unsupported OCR languages", err)
	}

	fetchCtx := ctx
	if s.deadline > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}
	img, err := s.fetcher.FetchImage(fetchCtx, imageURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("image fetch timeout", err)
		}
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}

	quality := s.metrics.Measure(img)
	bounds := img.Bounds()
	issues := s.quality.ValidateFrame(quality, bounds.Dx(), bounds.Dy())

	ocrStart := time.Now()
	regions, err := oracle.Detect(ctx, img)
	if err != nil {
		if errors.Is(err, ocr.ErrOracleTimeout) {
			return nil, apperrors.NewTimeoutError("OCR timed out", err)
		}
		return nil, apperrors.NewOracleError("OCR failed", err)
	}
	ocrSec := time.Since(ocrStart).Seconds()

	text := joinLines(regions)
	summary := ocr.Summarize(regions)
	verdict := classifier.Analyze(text)

	result := models.OCRResult{
		ExtractedText:     text,
		Confidence:        summary.Confidence * 100,
		WordCount:         len(strings.Fields(text)),
		CharacterCount:    utf8.RuneCountInString(text),
		LineCount:         verdict.TotalLines,
		ContentType:       verdict.ContentType,
		ProcessingTimeSec: ocrSec,
		CreatedAt:         time.Now().UTC(),
	}
	if verdict.ContentType != models.ContentText {
		result.CodeBlocks = verdict.CodeBlocks
	}

	analysis := &models.DocumentAnalysis{
		ImageURL:          imageURL,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Width:             bounds.Dx(),
		Height:            bounds.Dy(),
		Quality:           quality,
		QualityIssues:     s.quality.ConvertIssuesToMessages(issues),
		OCR:               result,
	}

	logger.WithComponent("documents").WithFields(logrus.Fields{
		"url":                imageURL,
		"content_type":       result.ContentType,
		"code_blocks":        len(result.CodeBlocks),
		"processing_time_ms": time.Since(start).Milliseconds(),
	}).Info("Document analysis completed")

	return analysis, nil
}

// joinLines rebuilds line structure from region bounds: regions whose
// vertical centers fall within half a line height of the previous region
// share a line. Indentation is approximated from the left edge.
func joinLines(regions []ocr.Region) string {
	var (
		lines   []string
		current []string
		lastMid = -1
		lineH   = 0
		minX    = -1
		indent  = 0
	)

	for _, r := range regions {
		if strings.TrimSpace(r.Text) != "" && !r.Bounds.Empty() && (minX < 0 || r.Bounds.Min.X < minX) {
			minX = r.Bounds.Min.X
		}
	}

	flush := func() {
		if len(current) > 0 {
			lines = append(lines, strings.Repeat(" ", indent)+strings.Join(current, " "))
			current = nil
		}
	}

	for _, r := range regions {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if r.Bounds.Empty() {
			current = append(current, text)
			continue
		}

		mid := (r.Bounds.Min.Y + r.Bounds.Max.Y) / 2
		h := r.Bounds.Dy()
		if lastMid < 0 || abs(mid-lastMid) > max(lineH, h)/2 {
			flush()
			indent = 0
			if charW := h / 2; charW > 0 && minX >= 0 {
				indent = (r.Bounds.Min.X - minX) / charW
			}
		}
		current = append(current, text)
		lastMid, lineH = mid, h
	}
	flush()
	return strings.Join(lines, "\n")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
