package enhancer

import (
	"image"
	"math"
)

// clahe applies contrast limited adaptive histogram equalization on a
// grid x grid tiling, blending neighbouring tile mappings bilinearly.
func clahe(src *image.Gray, clipLimit float64, grid int) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(src.Bounds())
	if w == 0 || h == 0 {
		return dst
	}
	if grid < 1 {
		grid = 1
	}

	tilesX, tilesY := grid, grid
	if tilesX > w {
		tilesX = w
	}
	if tilesY > h {
		tilesY = h
	}
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*tilesX+tx] = tileMapping(src, x0, y0, x1, y1, clipLimit)
		}
	}

	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			fy := float64(y)/float64(tileH) - 0.5
			ty1 := int(math.Floor(fy))
			ty2 := ty1 + 1
			ya := fy - float64(ty1)
			ty1 = max(ty1, 0)
			ty2 = min(ty2, tilesY-1)

			for x := 0; x < w; x++ {
				fx := float64(x)/float64(tileW) - 0.5
				tx1 := int(math.Floor(fx))
				tx2 := tx1 + 1
				xa := fx - float64(tx1)
				tx1 = max(tx1, 0)
				tx2 = min(tx2, tilesX-1)

				v := src.Pix[y*src.Stride+x]
				top := (1-xa)*float64(luts[ty1*tilesX+tx1][v]) + xa*float64(luts[ty1*tilesX+tx2][v])
				bottom := (1-xa)*float64(luts[ty2*tilesX+tx1][v]) + xa*float64(luts[ty2*tilesX+tx2][v])
				dst.Pix[y*dst.Stride+x] = clampUint8((1-ya)*top + ya*bottom)
			}
		}
	})
	return dst
}

func tileMapping(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		row := src.Pix[y*src.Stride+x0 : y*src.Stride+x1]
		for _, v := range row {
			hist[v]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	if clipLimit > 0 {
		limit := int(clipLimit * float64(area) / 256)
		if limit < 1 {
			limit = 1
		}
		clipped := 0
		for i := range hist {
			if hist[i] > limit {
				clipped += hist[i] - limit
				hist[i] = limit
			}
		}
		batch := clipped / 256
		residual := clipped - batch*256
		for i := range hist {
			hist[i] += batch
		}
		if residual > 0 {
			step := max(256/residual, 1)
			for i := 0; i < 256 && residual > 0; i += step {
				hist[i]++
				residual--
			}
		}
	}

	var lut [256]uint8
	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = clampUint8(float64(sum) * scale)
	}
	return lut
}
