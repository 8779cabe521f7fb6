package analyzer

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"gonum.org/v1/gonum/stat"
)

const (
	edgeMagnitudeThreshold = 50.0
	parallelPixelThreshold = 100000
)

type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// ToGray returns the single-channel intensity of img using the BT.601 weights.
// A *image.Gray is returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	switch src := img.(type) {
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			si := src.PixOffset(bounds.Min.X, y)
			di := gray.PixOffset(bounds.Min.X, y)
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				gray.Pix[di] = luma(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
				si += 4
				di++
			}
		}
	case *image.RGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			si := src.PixOffset(bounds.Min.X, y)
			di := gray.PixOffset(bounds.Min.X, y)
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				gray.Pix[di] = luma(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
				si += 4
				di++
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				gray.SetGray(x, y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
			}
		}
	}
	return gray
}

// luma matches color.GrayModel so both code paths agree.
func luma(r, g, b uint8) uint8 {
	r16, g16, b16 := uint32(r)*0x101, uint32(g)*0x101, uint32(b)*0x101
	return uint8((19595*r16 + 38470*g16 + 7471*b16 + 1<<15) >> 24)
}

func (mc *metricsCalculator) Measure(img image.Image) models.QualityMetrics {
	gray := ToGray(img)
	return models.QualityMetrics{
		BlurVariance:     mc.BlurVariance(gray),
		IlluminationMean: mc.IlluminationMean(gray),
	}
}

// BlurVariance computes Laplacian variance using Gonum operations.
// Frames smaller than 3x3 have no interior and report 0.
func (mc *metricsCalculator) BlurVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()

	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	stride := gray.Stride
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		i := gray.PixOffset(bounds.Min.X+1, y)
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.Pix[i])
			top := float64(gray.Pix[i-stride])
			bottom := float64(gray.Pix[i+stride])
			left := float64(gray.Pix[i-1])
			right := float64(gray.Pix[i+1])

			data = append(data, -4*center+top+bottom+left+right)
			i++
		}
	}

	// stat.Variance is the sample variance; the population form keeps a
	// uniform frame at exactly 0 and matches the usual sharpness score.
	mean := stat.Mean(data, nil)
	variance := stat.MomentAbout(2, data, mean, nil)
	if math.IsNaN(variance) || variance < 0 {
		return 0
	}
	return variance
}

// IlluminationMean computes average brightness with parallel processing
func (mc *metricsCalculator) IlluminationMean(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width == 0 || height == 0 {
		return 0
	}

	if width*height < parallelPixelThreshold {
		return sumRows(gray, bounds.Min.Y, bounds.Max.Y) / float64(width*height)
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make(chan float64, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := bounds.Min.Y + i*rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 || endY > bounds.Max.Y {
			endY = bounds.Max.Y
		}
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			results <- sumRows(gray, startY, endY)
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total float64
	for partial := range results {
		total += partial
	}

	return total / float64(width*height)
}

func sumRows(gray *image.Gray, startY, endY int) float64 {
	bounds := gray.Bounds()
	var total float64
	for y := startY; y < endY; y++ {
		row := gray.Pix[gray.PixOffset(bounds.Min.X, y) : gray.PixOffset(bounds.Max.X-1, y)+1]
		for _, v := range row {
			total += float64(v)
		}
	}
	return total
}

func (mc *metricsCalculator) EdgeDensity(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	at := func(x, y int) int { return int(gray.GrayAt(x, y).Y) }

	edges := 0
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx := at(x+1, y-1) - at(x-1, y-1) +
				2*at(x+1, y) - 2*at(x-1, y) +
				at(x+1, y+1) - at(x-1, y+1)
			gy := at(x-1, y+1) - at(x-1, y-1) +
				2*at(x, y+1) - 2*at(x, y-1) +
				at(x+1, y+1) - at(x+1, y-1)

			if math.Sqrt(float64(gx*gx+gy*gy)) > edgeMagnitudeThreshold {
				edges++
			}
		}
	}

	return float64(edges) / float64((width-2)*(height-2))
}
