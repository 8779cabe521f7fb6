// Package tesseract provides an OCR oracle backed by gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/anime-shed/ocr-camera-go/internal/ocr"
	"github.com/otiai10/gosseract/v2"
)

// Oracle wraps one gosseract client. The client is not safe for concurrent
// use; callers wrap Oracle with ocr.Serialized when sharing it.
type Oracle struct {
	client    *gosseract.Client
	level     gosseract.PageIteratorLevel
	languages []string
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithLevel selects the granularity of returned regions.
func WithLevel(level gosseract.PageIteratorLevel) Option {
	return func(o *Oracle) { o.level = level }
}

// New creates a client for the given languages ("eng" when empty).
func New(languages []string, opts ...Option) (*Oracle, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}

	o := &Oracle{client: client, level: gosseract.RIL_WORD, languages: languages}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Detect runs recognition on img. Confidences are scaled from tesseract's
// 0-100 range to fractions.
func (o *Oracle) Detect(ctx context.Context, img image.Image) ([]ocr.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := o.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := o.client.GetBoundingBoxes(o.level)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	regions := make([]ocr.Region, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		regions = append(regions, ocr.Region{
			Text:       text,
			Confidence: clampFraction(b.Confidence / 100.0),
			Bounds:     b.Box,
		})
	}
	return regions, nil
}

// Languages reports the configured recognition languages.
func (o *Oracle) Languages() []string {
	return o.languages
}

func (o *Oracle) Close() error {
	return o.client.Close()
}

func clampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
