package enhancer

import (
	"image"
	"math"
)

// bilateralFilter smooths intensity while keeping edges. Borders are
// reflected without repeating the edge pixel.
func bilateralFilter(src *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(src.Bounds())
	if diameter <= 1 || w == 0 || h == 0 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	radius := diameter / 2

	var colorWeight [256]float64
	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	for i := range colorWeight {
		colorWeight[i] = math.Exp(float64(i*i) * colorCoeff)
	}

	type tap struct {
		dx, dy int
		weight float64
	}
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	var taps []tap
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r := math.Sqrt(float64(dx*dx + dy*dy))
			if r > float64(radius) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(r * r * spaceCoeff)})
		}
	}

	offsets := make([]int, len(taps))
	for i, t := range taps {
		offsets[i] = t.dy*src.Stride + t.dx
	}

	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			row := y * src.Stride
			interiorY := y >= radius && y < h-radius
			for x := 0; x < w; x++ {
				center := int(src.Pix[row+x])
				var sum, norm float64
				if interiorY && x >= radius && x < w-radius {
					base := row + x
					for i, off := range offsets {
						v := int(src.Pix[base+off])
						wgt := taps[i].weight * colorWeight[absDiff(v, center)]
						sum += float64(v) * wgt
						norm += wgt
					}
				} else {
					for _, t := range taps {
						sx := reflect101(x+t.dx, w)
						sy := reflect101(y+t.dy, h)
						v := int(src.Pix[sy*src.Stride+sx])
						wgt := t.weight * colorWeight[absDiff(v, center)]
						sum += float64(v) * wgt
						norm += wgt
					}
				}
				dst.Pix[y*dst.Stride+x] = clampUint8(sum / norm)
			}
		}
	})

	return dst
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

func absDiff(a, b int) int {
	if a < b {
		return b - a
	}
	return a - b
}
