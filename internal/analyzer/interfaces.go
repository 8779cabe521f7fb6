package analyzer

import (
	"image"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
)

// MetricsCalculator computes frame quality metrics. Implementations are
// pure: the same frame always yields the same values.
type MetricsCalculator interface {
	// BlurVariance is the variance of the Laplacian response. Higher is sharper.
	BlurVariance(gray *image.Gray) float64
	// IlluminationMean is the mean intensity in [0,255].
	IlluminationMean(gray *image.Gray) float64
	// EdgeDensity is the fraction of interior pixels whose Sobel magnitude
	// exceeds the edge threshold.
	EdgeDensity(gray *image.Gray) float64
	// Measure converts img to gray once and returns both headline metrics.
	Measure(img image.Image) models.QualityMetrics
}
