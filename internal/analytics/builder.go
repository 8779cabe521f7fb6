// Package analytics builds the enhanced-versus-raw comparison record that
// accompanies every auto-capture.
package analytics

import (
	"context"
	"image"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anime-shed/ocr-camera-go/internal/analyzer"
	"github.com/anime-shed/ocr-camera-go/internal/logger"
	"github.com/anime-shed/ocr-camera-go/internal/ocr"
	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"github.com/anime-shed/ocr-camera-go/pkg/validation"
	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Metric keys stored in FrameMetadata.Metrics.
const (
	MetricWordCountDelta     = "word_count_delta"
	MetricCharacterErrorRate = "character_error_rate"
	MetricWordErrorRate      = "word_error_rate"
	MetricProcessingMs       = "processing_ms"
	MetricEnhancedBlur       = "enhanced_blur_variance"
	MetricEdgeDensity        = "edge_density"
	MetricIsBlurry           = "is_blurry"
	MetricIsTooDark          = "is_too_dark"
	MetricIsTooBright        = "is_too_bright"
	MetricRawOCRFailed       = "raw_ocr_failed"
)

// Builder runs the second OCR pass on the raw frame and compares it with
// the enhanced result the detection gate already produced.
type Builder struct {
	oracle    ocr.Oracle
	metrics   analyzer.MetricsCalculator
	validator *validation.QualityValidator
}

func NewBuilder(oracle ocr.Oracle, metrics analyzer.MetricsCalculator, validator *validation.QualityValidator) *Builder {
	return &Builder{oracle: oracle, metrics: metrics, validator: validator}
}

// Input is everything known about a capture before the raw pass.
type Input struct {
	CameraID  string
	Timestamp time.Time
	Raw       image.Image
	Enhanced  image.Image
	// EnhancedOCR is the oracle output for Enhanced.
	EnhancedOCR ocr.Summary
}

// Build always returns a record. A failed raw OCR pass leaves the raw
// fields empty and sets the raw_ocr_failed metric.
func (b *Builder) Build(ctx context.Context, in Input) *models.FrameMetadata {
	start := time.Now()

	rawGray := analyzer.ToGray(in.Raw)
	quality := models.QualityMetrics{
		BlurVariance:     b.metrics.BlurVariance(rawGray),
		IlluminationMean: b.metrics.IlluminationMean(rawGray),
	}

	record := &models.FrameMetadata{
		ID:                 uuid.NewString(),
		Timestamp:          in.Timestamp,
		CameraID:           in.CameraID,
		BlurVariance:       quality.BlurVariance,
		IlluminationMean:   quality.IlluminationMean,
		Enhanced:           true,
		EnhancedText:       in.EnhancedOCR.Text,
		EnhancedConfidence: percent(in.EnhancedOCR.Confidence),
		EnhancedWordCount:  in.EnhancedOCR.WordCount,
		Metrics:            make(map[string]interface{}),
	}

	regions, err := b.oracle.Detect(ctx, in.Raw)
	if err != nil {
		logger.WithComponent("analytics").WithFields(logrus.Fields{
			"camera_id": in.CameraID,
			"error":     err.Error(),
		}).Warn("Raw frame OCR failed, keeping enhanced-only analytics")
		record.Metrics[MetricRawOCRFailed] = true
	} else {
		raw := ocr.Summarize(regions)
		record.RawText = raw.Text
		record.RawConfidence = percent(raw.Confidence)
		record.RawWordCount = raw.WordCount
	}
	record.AccuracyImprovement = record.EnhancedConfidence - record.RawConfidence

	flags := b.validator.Flags(quality)
	record.Metrics[MetricIsBlurry] = flags.IsBlurry
	record.Metrics[MetricIsTooDark] = flags.IsTooDark
	record.Metrics[MetricIsTooBright] = flags.IsTooBright
	record.Metrics[MetricEdgeDensity] = b.metrics.EdgeDensity(rawGray)
	if in.Enhanced != nil {
		record.Metrics[MetricEnhancedBlur] = b.metrics.BlurVariance(analyzer.ToGray(in.Enhanced))
	}
	record.Metrics[MetricWordCountDelta] = record.EnhancedWordCount - record.RawWordCount
	record.Metrics[MetricCharacterErrorRate] = CharacterErrorRate(record.RawText, record.EnhancedText)
	record.Metrics[MetricWordErrorRate] = WordErrorRate(record.RawText, record.EnhancedText)
	record.Metrics[MetricProcessingMs] = time.Since(start).Milliseconds()

	return record
}

// CharacterErrorRate is the edit distance between the two texts divided by
// the rune length of reference, with a floor of one on the divisor.
func CharacterErrorRate(reference, candidate string) float64 {
	n := utf8.RuneCountInString(reference)
	if n < 1 {
		n = 1
	}
	return round4(float64(levenshtein.Distance(reference, candidate)) / float64(n))
}

// WordErrorRate compares whitespace-separated words. An empty reference
// yields 0 for an empty candidate and 1 otherwise.
func WordErrorRate(reference, candidate string) float64 {
	ref := strings.Fields(reference)
	cand := strings.Fields(candidate)
	if len(ref) == 0 {
		if len(cand) == 0 {
			return 0
		}
		return 1
	}
	rate, _ := wer.WER(ref, cand)
	return round4(rate)
}

func percent(fraction float64) float64 {
	return round4(fraction * 100)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
