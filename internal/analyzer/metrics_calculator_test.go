package analyzer

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func createTestImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createSplitGray(width, height int) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				gray.Set(x, y, color.Gray{0})
			} else {
				gray.Set(x, y, color.Gray{255})
			}
		}
	}
	return gray
}

func TestNewMetricsCalculator(t *testing.T) {
	calc := NewMetricsCalculator()
	if calc == nil {
		t.Error("Expected non-nil metrics calculator")
	}
}

func TestBlurVariance_UniformImage(t *testing.T) {
	calc := NewMetricsCalculator()

	gray := ToGray(createTestImage(100, 100, color.RGBA{128, 128, 128, 255}))
	variance := calc.BlurVariance(gray)

	if variance != 0 {
		t.Errorf("Expected 0 variance for uniform image, got %f", variance)
	}
}

func TestBlurVariance_EdgeImage(t *testing.T) {
	calc := NewMetricsCalculator()

	variance := calc.BlurVariance(createSplitGray(100, 100))

	if variance < 100 {
		t.Errorf("Expected higher variance for edge image, got %f", variance)
	}
}

func TestBlurVariance_Degenerate(t *testing.T) {
	calc := NewMetricsCalculator()

	sizes := []image.Rectangle{
		image.Rect(0, 0, 0, 0),
		image.Rect(0, 0, 1, 1),
		image.Rect(0, 0, 2, 50),
	}
	for _, r := range sizes {
		if v := calc.BlurVariance(image.NewGray(r)); v != 0 {
			t.Errorf("Expected 0 for %v, got %f", r, v)
		}
	}
}

func TestBlurVariance_Deterministic(t *testing.T) {
	calc := NewMetricsCalculator()
	gray := createSplitGray(64, 48)

	first := calc.BlurVariance(gray)
	for i := 0; i < 3; i++ {
		if got := calc.BlurVariance(gray); got != first {
			t.Errorf("Expected %f on repeat %d, got %f", first, i, got)
		}
	}
}

func TestBlurVariance_OffsetBounds(t *testing.T) {
	calc := NewMetricsCalculator()

	full := createSplitGray(60, 60)
	sub := full.SubImage(image.Rect(10, 10, 50, 50)).(*image.Gray)

	if v := calc.BlurVariance(sub); v <= 0 {
		t.Errorf("Expected positive variance for sub image with an edge, got %f", v)
	}
}

func TestIlluminationMean(t *testing.T) {
	calc := NewMetricsCalculator()

	testCases := []struct {
		name           string
		grayValue      uint8
		size           int
		expectedBright float64
	}{
		{"Black Image", 0, 50, 0.0},
		{"Gray Image", 128, 50, 128.0},
		{"White Image", 255, 50, 255.0},
		{"Large Gray Image", 200, 400, 200.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gray := image.NewGray(image.Rect(0, 0, tc.size, tc.size))
			for i := range gray.Pix {
				gray.Pix[i] = tc.grayValue
			}

			brightness := calc.IlluminationMean(gray)

			if math.Abs(brightness-tc.expectedBright) > 1.0 {
				t.Errorf("Expected brightness ~%f, got %f", tc.expectedBright, brightness)
			}
			if brightness < 0 || brightness > 255 {
				t.Errorf("Expected brightness within [0,255], got %f", brightness)
			}
		})
	}
}

func TestMeasure(t *testing.T) {
	calc := NewMetricsCalculator()

	m := calc.Measure(createTestImage(20, 20, color.RGBA{255, 255, 255, 255}))
	if math.Abs(m.IlluminationMean-255) > 0.5 {
		t.Errorf("Expected illumination ~255, got %f", m.IlluminationMean)
	}
	if m.BlurVariance != 0 {
		t.Errorf("Expected 0 blur variance, got %f", m.BlurVariance)
	}
}

func TestToGray_MatchesGrayModel(t *testing.T) {
	c := color.NRGBA{200, 40, 90, 255}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	want := color.GrayModel.Convert(c).(color.Gray).Y
	got := ToGray(img).GrayAt(2, 2).Y
	if got != want {
		t.Errorf("Expected gray %d, got %d", want, got)
	}
}

func TestEdgeDensity(t *testing.T) {
	calc := NewMetricsCalculator()

	uniform := image.NewGray(image.Rect(0, 0, 100, 100))
	if d := calc.EdgeDensity(uniform); d != 0 {
		t.Errorf("Expected 0 edge density for uniform image, got %f", d)
	}

	checker := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if (x/10+y/10)%2 == 0 {
				checker.Set(x, y, color.Gray{255})
			}
		}
	}
	if d := calc.EdgeDensity(checker); d < 0.1 {
		t.Errorf("Expected many edges for checkerboard image, got %f", d)
	}
}
