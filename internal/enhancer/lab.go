package enhancer

import (
	"image"
	"math"
	"sync"
)

// equalizeLightness converts to CIE Lab (8-bit scaled), applies CLAHE to L
// only and converts back, leaving chroma untouched. Gray pixels use
// precomputed tables that give the same result as the full conversion.
func equalizeLightness(src *image.NRGBA, clipLimit float64, grid int) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	lightness := image.NewGray(image.Rect(0, 0, w, h))
	as := make([]float64, w*h)
	bs := make([]float64, w*h)
	fwd := grayLab()

	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < w; x++ {
				o := y*src.Stride + x*4
				r, g, b := src.Pix[o], src.Pix[o+1], src.Pix[o+2]
				var l8 uint8
				if r == g && g == b {
					l8 = fwd[r].l8
				} else {
					l, a, bb := rgbToLab(r, g, b)
					l8 = clampUint8(l * 255 / 100)
					as[y*w+x] = a
					bs[y*w+x] = bb
				}
				lightness.Pix[y*lightness.Stride+x] = l8
			}
		}
	})

	lightness = clahe(lightness, clipLimit, grid)

	back := grayRGB()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < w; x++ {
				so := y*src.Stride + x*4
				o := y*dst.Stride + x*4
				lv := lightness.Pix[y*lightness.Stride+x]
				if v := src.Pix[so]; v == src.Pix[so+1] && v == src.Pix[so+2] {
					rgb := back[v][lv]
					dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2] = rgb[0], rgb[1], rgb[2]
				} else {
					dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2] = labToRGB(float64(lv)*100/255, as[y*w+x], bs[y*w+x])
				}
				dst.Pix[o+3] = src.Pix[so+3]
			}
		}
	})
	return dst
}

type grayLabEntry struct {
	l8   uint8
	a, b float64
}

// grayLab maps a gray level to its scaled lightness and chroma.
var grayLab = sync.OnceValue(func() *[256]grayLabEntry {
	var t [256]grayLabEntry
	for v := range t {
		l, a, b := rgbToLab(uint8(v), uint8(v), uint8(v))
		t[v] = grayLabEntry{l8: clampUint8(l * 255 / 100), a: a, b: b}
	}
	return &t
})

// grayRGB maps (source gray level, equalized lightness) back to RGB using
// the source level's chroma.
var grayRGB = sync.OnceValue(func() *[256][256][3]uint8 {
	fwd := grayLab()
	var t [256][256][3]uint8
	for v := range t {
		for lv := range t[v] {
			r, g, b := labToRGB(float64(lv)*100/255, fwd[v].a, fwd[v].b)
			t[v][lv] = [3]uint8{r, g, b}
		}
	}
	return &t
})

// D65 reference white.
const (
	whiteX = 0.950456
	whiteZ = 1.088754
)

func srgbToLinear(c uint8) float64 {
	v := float64(c) / 255
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func linearToSRGB(v float64) uint8 {
	if v <= 0.0031308 {
		v *= 12.92
	} else {
		v = 1.055*math.Pow(v, 1/2.4) - 0.055
	}
	return clampUint8(v * 255)
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116
}

func labFInv(t float64) float64 {
	if t3 := t * t * t; t3 > 0.008856 {
		return t3
	}
	return (t - 16.0/116) / 7.787
}

func rgbToLab(r8, g8, b8 uint8) (l, a, b float64) {
	r, g, bl := srgbToLinear(r8), srgbToLinear(g8), srgbToLinear(b8)

	x := (0.412453*r + 0.357580*g + 0.180423*bl) / whiteX
	y := 0.212671*r + 0.715160*g + 0.072169*bl
	z := (0.019334*r + 0.119193*g + 0.950227*bl) / whiteZ

	fx, fy, fz := labF(x), labF(y), labF(z)
	return 116*fy - 16, 500 * (fx - fy), 200 * (fy - fz)
}

func labToRGB(l, a, b float64) (uint8, uint8, uint8) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200

	x := labFInv(fx) * whiteX
	y := labFInv(fy)
	z := labFInv(fz) * whiteZ

	r := 3.240479*x - 1.537150*y - 0.498535*z
	g := -0.969256*x + 1.875992*y + 0.041556*z
	bl := 0.055648*x - 0.204043*y + 1.057311*z
	return linearToSRGB(math.Max(r, 0)), linearToSRGB(math.Max(g, 0)), linearToSRGB(math.Max(bl, 0))
}
