package validation

import (
	"testing"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

func TestNewQualityValidator(t *testing.T) {
	validator := NewQualityValidator()
	if validator == nil {
		t.Fatal("Expected non-nil quality validator")
	}

	expected := DefaultQualityThresholds().MinBlurVariance
	if validator.thresholds.MinBlurVariance != expected {
		t.Errorf("Expected MinBlurVariance to be %f, got %f", expected, validator.thresholds.MinBlurVariance)
	}
}

func TestNewQualityValidatorWithThresholds(t *testing.T) {
	validator := NewQualityValidatorWithThresholds(QualityThresholds{MinBlurVariance: 500.0})
	if validator.thresholds.MinBlurVariance != 500.0 {
		t.Errorf("Expected custom MinBlurVariance to be 500.0, got %f", validator.thresholds.MinBlurVariance)
	}
}

func TestFlags(t *testing.T) {
	validator := NewQualityValidator()

	tests := []struct {
		name    string
		metrics models.QualityMetrics
		want    QualityFlags
	}{
		{"sharp and balanced", models.QualityMetrics{BlurVariance: 450, IlluminationMean: 140}, QualityFlags{}},
		{"blurry", models.QualityMetrics{BlurVariance: 99.9, IlluminationMean: 140}, QualityFlags{IsBlurry: true}},
		{"blur threshold is exclusive", models.QualityMetrics{BlurVariance: 100, IlluminationMean: 140}, QualityFlags{}},
		{"dark", models.QualityMetrics{BlurVariance: 450, IlluminationMean: 79}, QualityFlags{IsTooDark: true}},
		{"bright", models.QualityMetrics{BlurVariance: 450, IlluminationMean: 221}, QualityFlags{IsTooBright: true}},
		{"uniform black", models.QualityMetrics{}, QualityFlags{IsBlurry: true, IsTooDark: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validator.Flags(tt.metrics); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestValidateFrame_HighQuality(t *testing.T) {
	validator := NewQualityValidator()

	issues := validator.ValidateFrame(models.QualityMetrics{BlurVariance: 800, IlluminationMean: 150}, 1280, 720)
	if len(issues) > 0 {
		t.Errorf("Expected no quality issues for a good frame, got: %v", issues)
	}
	if validator.HasCriticalIssues(issues) {
		t.Error("Expected no critical issues")
	}
}

func TestValidateFrame_Issues(t *testing.T) {
	validator := NewQualityValidator()

	tests := []struct {
		name      string
		metrics   models.QualityMetrics
		w, h      int
		wantType  string
		wantError bool
	}{
		{"blurry", models.QualityMetrics{BlurVariance: 20, IlluminationMean: 150}, 1280, 720, "blurriness", true},
		{"noisy", models.QualityMetrics{BlurVariance: 2500, IlluminationMean: 150}, 1280, 720, "over_sharpening", false},
		{"dark", models.QualityMetrics{BlurVariance: 800, IlluminationMean: 30}, 1280, 720, "too_dark", true},
		{"bright", models.QualityMetrics{BlurVariance: 800, IlluminationMean: 240}, 1280, 720, "too_bright", true},
		{"tiny", models.QualityMetrics{BlurVariance: 800, IlluminationMean: 150}, 160, 120, "low_resolution", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := validator.ValidateFrame(tt.metrics, tt.w, tt.h)
			if len(issues) != 1 {
				t.Fatalf("Expected 1 issue, got %v", issues)
			}
			if issues[0].Type != tt.wantType {
				t.Errorf("Expected issue type %s, got %s", tt.wantType, issues[0].Type)
			}
			if validator.HasCriticalIssues(issues) != tt.wantError {
				t.Errorf("Expected critical=%v for %s", tt.wantError, tt.wantType)
			}
		})
	}
}

func TestConvertIssuesToMessages(t *testing.T) {
	validator := NewQualityValidator()
	issues := []QualityIssue{
		{Type: "a", Message: "first"},
		{Type: "b", Message: "second"},
	}

	messages := validator.ConvertIssuesToMessages(issues)
	if len(messages) != 2 || messages[0] != "first" || messages[1] != "second" {
		t.Errorf("Expected [first second], got %v", messages)
	}
}
