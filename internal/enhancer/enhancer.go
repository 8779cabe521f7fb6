// Package enhancer raises the legibility of camera frames before OCR.
package enhancer

import (
	"errors"
	"image"
	"image/draw"

	"github.com/anime-shed/ocr-camera-go/internal/analyzer"
	"github.com/disintegration/imaging"
)

// ErrEmptyFrame is returned for frames with no pixels.
var ErrEmptyFrame = errors.New("enhancer: empty frame")

var sharpenKernel = [9]float64{
	-1, -1, -1,
	-1, 9, -1,
	-1, -1, -1,
}

// Options holds the enhancement parameters.
type Options struct {
	BilateralDiameter int
	SigmaColor        float64
	SigmaSpace        float64
	UnsharpSigma      float64
	UnsharpAmount     float64
	ContrastClipLimit float64
	LumaClipLimit     float64
	TileGrid          int
}

// DefaultOptions returns the parameters tuned for 720p text capture.
func DefaultOptions() Options {
	return Options{
		BilateralDiameter: 9,
		SigmaColor:        75,
		SigmaSpace:        75,
		UnsharpSigma:      2.0,
		UnsharpAmount:     1.0,
		ContrastClipLimit: 3.0,
		LumaClipLimit:     2.0,
		TileGrid:          8,
	}
}

// Enhancer applies a fixed, stateless transform. It is safe for concurrent use.
type Enhancer struct {
	opts Options
}

func New(opts Options) *Enhancer {
	return &Enhancer{opts: opts}
}

// Enhance returns a new frame; src is never modified. The steps are:
// edge-preserving smoothing, unsharp mask, CLAHE on intensity, a 3x3
// sharpening convolution and CLAHE on the Lab lightness channel.
func (e *Enhancer) Enhance(src image.Image) (*image.NRGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	gray := normalizeOrigin(analyzer.ToGray(src))

	denoised := bilateralFilter(gray, e.opts.BilateralDiameter, e.opts.SigmaColor, e.opts.SigmaSpace)
	unsharp := unsharpMask(denoised, e.opts.UnsharpSigma, e.opts.UnsharpAmount)
	contrasted := clahe(unsharp, e.opts.ContrastClipLimit, e.opts.TileGrid)

	sharpened := imaging.Convolve3x3(grayToNRGBA(contrasted), sharpenKernel, nil)

	return equalizeLightness(sharpened, e.opts.LumaClipLimit, e.opts.TileGrid), nil
}

func normalizeOrigin(g *image.Gray) *image.Gray {
	if g.Bounds().Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, g.Bounds().Dx(), g.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), g, g.Bounds().Min, draw.Src)
	return out
}

// unsharpMask computes (1+amount)*src - amount*blur.
func unsharpMask(src *image.Gray, sigma, amount float64) *image.Gray {
	blurred := imaging.Blur(src, sigma)
	out := image.NewGray(src.Bounds())
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			si := y * src.Stride
			bi := y * blurred.Stride
			oi := y * out.Stride
			for x := 0; x < w; x++ {
				v := (1+amount)*float64(src.Pix[si+x]) - amount*float64(blurred.Pix[bi+x*4])
				out.Pix[oi+x] = clampUint8(v)
			}
		}
	})
	return out
}

func grayToNRGBA(g *image.Gray) *image.NRGBA {
	out := image.NewNRGBA(g.Bounds())
	for i, v := range g.Pix {
		j := i * 4
		out.Pix[j] = v
		out.Pix[j+1] = v
		out.Pix[j+2] = v
		out.Pix[j+3] = 0xff
	}
	return out
}

func clampUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
