package enhancer

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func createTextLikeImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{200, 200, 190, 255}
			if (y/6)%3 == 1 && (x/4)%5 != 0 {
				c = color.RGBA{40, 40, 50, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestEnhance_PreservesDimensions(t *testing.T) {
	e := New(DefaultOptions())
	src := createTextLikeImage(64, 48)

	out, err := e.Enhance(src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
		t.Errorf("Expected 64x48, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestEnhance_DoesNotMutateSource(t *testing.T) {
	e := New(DefaultOptions())
	src := createTextLikeImage(32, 32)
	before := append([]uint8(nil), src.Pix...)

	if _, err := e.Enhance(src); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for i := range before {
		if before[i] != src.Pix[i] {
			t.Fatalf("Source pixel %d changed", i)
		}
	}
}

func TestEnhance_Deterministic(t *testing.T) {
	e := New(DefaultOptions())
	src := createTextLikeImage(40, 30)

	a, _ := e.Enhance(src)
	b, _ := e.Enhance(src)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("Expected identical output, pixel %d differs", i)
		}
	}
}

func TestEnhance_EmptyFrame(t *testing.T) {
	e := New(DefaultOptions())

	if _, err := e.Enhance(image.NewRGBA(image.Rect(0, 0, 0, 0))); err != ErrEmptyFrame {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
	if _, err := e.Enhance(nil); err != ErrEmptyFrame {
		t.Errorf("Expected ErrEmptyFrame for nil, got %v", err)
	}
}

func TestEnhance_OffsetSubImage(t *testing.T) {
	e := New(DefaultOptions())
	src := createTextLikeImage(60, 60).SubImage(image.Rect(10, 20, 50, 50))

	out, err := e.Enhance(src)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 40, 30) {
		t.Errorf("Expected rebased bounds, got %v", out.Bounds())
	}
}

func TestBilateralFilter_Uniform(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 20, 20))
	for i := range g.Pix {
		g.Pix[i] = 90
	}

	out := bilateralFilter(g, 9, 75, 75)
	for i, v := range out.Pix {
		if v != 90 {
			t.Fatalf("Expected 90 at %d, got %d", i, v)
		}
	}
}

func TestBilateralFilter_KeepsStrongEdge(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if x >= 10 {
				g.SetGray(x, y, color.Gray{250})
			}
		}
	}

	out := bilateralFilter(g, 9, 30, 75)
	if out.GrayAt(8, 10).Y > 20 {
		t.Errorf("Expected dark side to stay dark, got %d", out.GrayAt(8, 10).Y)
	}
	if out.GrayAt(11, 10).Y < 230 {
		t.Errorf("Expected bright side to stay bright, got %d", out.GrayAt(11, 10).Y)
	}
}

func TestCLAHE_StretchesLowContrast(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			g.Pix[y*g.Stride+x] = uint8(100 + (x+y)%20)
		}
	}

	out := clahe(g, 3.0, 8)

	lo, hi := uint8(255), uint8(0)
	for _, v := range out.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if int(hi)-int(lo) <= 19 {
		t.Errorf("Expected contrast range to grow beyond 19, got %d", int(hi)-int(lo))
	}
}

func TestReflect101(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{-1, 5, 1},
		{-2, 5, 2},
		{5, 5, 3},
		{6, 5, 2},
		{2, 5, 2},
		{-3, 1, 0},
	}
	for _, tt := range tests {
		if got := reflect101(tt.i, tt.n); got != tt.want {
			t.Errorf("reflect101(%d, %d): expected %d, got %d", tt.i, tt.n, tt.want, got)
		}
	}
}

func TestLabRoundTrip(t *testing.T) {
	colors := [][3]uint8{{0, 0, 0}, {255, 255, 255}, {128, 128, 128}, {200, 30, 60}, {10, 180, 90}}
	for _, c := range colors {
		l, a, b := rgbToLab(c[0], c[1], c[2])
		r, g, bl := labToRGB(l, a, b)
		if math.Abs(float64(r)-float64(c[0])) > 1 || math.Abs(float64(g)-float64(c[1])) > 1 || math.Abs(float64(bl)-float64(c[2])) > 1 {
			t.Errorf("Expected %v after round trip, got [%d %d %d]", c, r, g, bl)
		}
	}
}

// bilateralReference evaluates every pixel through the reflected border path.
func bilateralReference(src *image.Gray, diameter int, sigmaColor, sigmaSpace float64) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(src.Bounds())
	radius := diameter / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := int(src.Pix[y*src.Stride+x])
			var sum, norm float64
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					r := math.Sqrt(float64(dx*dx + dy*dy))
					if r > float64(radius) {
						continue
					}
					v := int(src.Pix[reflect101(y+dy, h)*src.Stride+reflect101(x+dx, w)])
					d := float64(v - center)
					wgt := math.Exp(r*r*-0.5/(sigmaSpace*sigmaSpace)) * math.Exp(d*d*-0.5/(sigmaColor*sigmaColor))
					sum += float64(v) * wgt
					norm += wgt
				}
			}
			dst.Pix[y*dst.Stride+x] = clampUint8(sum / norm)
		}
	}
	return dst
}

func TestBilateralFilter_InteriorMatchesReflectedPath(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 37, 23))
	for i := range g.Pix {
		g.Pix[i] = uint8((i*37 + i/7*11) % 256)
	}

	got := bilateralFilter(g, 9, 75, 75)
	want := bilateralReference(g, 9, 75, 75)
	for i := range want.Pix {
		if d := int(got.Pix[i]) - int(want.Pix[i]); d < -1 || d > 1 {
			t.Fatalf("Expected %d at %d, got %d", want.Pix[i], i, got.Pix[i])
		}
	}
}

// equalizeLightnessReference converts every pixel through the full Lab math.
func equalizeLightnessReference(src *image.NRGBA, clipLimit float64, grid int) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	lightness := image.NewGray(image.Rect(0, 0, w, h))
	as := make([]float64, w*h)
	bs := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*src.Stride + x*4
			l, a, b := rgbToLab(src.Pix[o], src.Pix[o+1], src.Pix[o+2])
			lightness.Pix[y*lightness.Stride+x] = clampUint8(l * 255 / 100)
			as[y*w+x], bs[y*w+x] = a, b
		}
	}
	lightness = clahe(lightness, clipLimit, grid)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := float64(lightness.Pix[y*lightness.Stride+x]) * 100 / 255
			r, g, b := labToRGB(l, as[y*w+x], bs[y*w+x])
			o := y*dst.Stride + x*4
			dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2] = r, g, b
			dst.Pix[o+3] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	return dst
}

func TestEqualizeLightness_MatchesFullConversion(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			v := uint8((x*5 + y*3) % 256)
			c := color.NRGBA{v, v, v, 255}
			if x%9 == 0 {
				c = color.NRGBA{v, 255 - v, 90, 255}
			}
			src.SetNRGBA(x, y, c)
		}
	}

	got := equalizeLightness(src, 2.0, 8)
	want := equalizeLightnessReference(src, 2.0, 8)
	for i := range want.Pix {
		if got.Pix[i] != want.Pix[i] {
			t.Fatalf("Expected %d at byte %d, got %d", want.Pix[i], i, got.Pix[i])
		}
	}
}

func BenchmarkEnhance720p(b *testing.B) {
	e := New(DefaultOptions())
	src := createTextLikeImage(1280, 720)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Enhance(src); err != nil {
			b.Fatal(err)
		}
	}
}
