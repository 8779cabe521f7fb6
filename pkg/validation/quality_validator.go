package validation

import (
	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

// QualityThresholds defines the limits a frame is checked against
type QualityThresholds struct {
	// Sharpness thresholds
	MinBlurVariance float64
	MaxBlurVariance float64

	// Brightness thresholds
	MinBrightness float64
	MaxBrightness float64

	// Resolution thresholds
	MinWidth  int
	MinHeight int
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinBlurVariance: 100.0,  // below this the Laplacian response is mostly noise
		MaxBlurVariance: 2000.0, // above this the frame is noisy or over-sharpened
		MinBrightness:   80.0,
		MaxBrightness:   220.0,
		MinWidth:        320,
		MinHeight:       240,
	}
}

// QualityValidator handles frame quality validation logic
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// QualityFlags are the boolean verdicts stored alongside analytics records.
type QualityFlags struct {
	IsBlurry    bool `json:"is_blurry"`
	IsTooDark   bool `json:"is_too_dark"`
	IsTooBright bool `json:"is_too_bright"`
}

// Flags evaluates the headline frame metrics against the thresholds.
func (qv *QualityValidator) Flags(m models.QualityMetrics) QualityFlags {
	return QualityFlags{
		IsBlurry:    m.BlurVariance < qv.thresholds.MinBlurVariance,
		IsTooDark:   m.IlluminationMean < qv.thresholds.MinBrightness,
		IsTooBright: m.IlluminationMean > qv.thresholds.MaxBrightness,
	}
}

// ValidateFrame reports every issue that is likely to hurt OCR on a frame
// of the given size.
func (qv *QualityValidator) ValidateFrame(m models.QualityMetrics, width, height int) []QualityIssue {
	var issues []QualityIssue
	flags := qv.Flags(m)

	// 1. Sharpness
	if flags.IsBlurry {
		issues = append(issues, QualityIssue{
			Type:        "blurriness",
			Message:     "Frame is blurry. Hold the document steady in front of the camera.",
			Severity:    "error",
			ActualValue: m.BlurVariance,
			Threshold:   qv.thresholds.MinBlurVariance,
		})
	} else if m.BlurVariance >= qv.thresholds.MaxBlurVariance {
		issues = append(issues, QualityIssue{
			Type:        "over_sharpening",
			Message:     "Frame is noisy. Improve lighting or reduce camera gain.",
			Severity:    "warning",
			ActualValue: m.BlurVariance,
			Threshold:   qv.thresholds.MaxBlurVariance,
		})
	}

	// 2. Brightness
	if flags.IsTooDark {
		issues = append(issues, QualityIssue{
			Type:        "too_dark",
			Message:     "Frame is too dark. Add more light.",
			Severity:    "error",
			ActualValue: m.IlluminationMean,
			Threshold:   qv.thresholds.MinBrightness,
		})
	}
	if flags.IsTooBright {
		issues = append(issues, QualityIssue{
			Type:        "too_bright",
			Message:     "Frame is too bright. Avoid glare on the page.",
			Severity:    "error",
			ActualValue: m.IlluminationMean,
			Threshold:   qv.thresholds.MaxBrightness,
		})
	}

	// 3. Resolution
	if width < qv.thresholds.MinWidth || height < qv.thresholds.MinHeight {
		issues = append(issues, QualityIssue{
			Type:        "low_resolution",
			Message:     "Frame resolution is too low for reliable OCR.",
			Severity:    "error",
			ActualValue: float64(width * height),
			Threshold:   float64(qv.thresholds.MinWidth * qv.thresholds.MinHeight),
		})
	}

	return issues
}

// ConvertIssuesToMessages converts quality issues to plain messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
