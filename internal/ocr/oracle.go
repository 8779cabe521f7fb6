// Package ocr defines the contract around an OCR engine. The engine itself
// lives in a sub-package; everything here works with any implementation.
package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"time"
)

// ErrOracleTimeout is returned when an engine call outlives its deadline.
var ErrOracleTimeout = errors.New("ocr: oracle call timed out")

// Region is one recognized piece of text. Confidence is a fraction in [0,1].
type Region struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Bounds     image.Rectangle `json:"bounds"`
}

// Oracle maps an image to recognized regions in reading order.
type Oracle interface {
	Detect(ctx context.Context, img image.Image) ([]Region, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, img image.Image) ([]Region, error)

func (f OracleFunc) Detect(ctx context.Context, img image.Image) ([]Region, error) {
	return f(ctx, img)
}

// Summary aggregates regions into one text and one confidence.
type Summary struct {
	Text       string
	Confidence float64
	WordCount  int
}

// Summarize joins the non-blank region texts with single spaces and
// averages their confidences. Blank regions count toward neither.
func Summarize(regions []Region) Summary {
	var (
		parts []string
		total float64
	)
	for _, r := range regions {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		total += r.Confidence
	}
	if len(parts) == 0 {
		return Summary{}
	}
	text := strings.Join(parts, " ")
	return Summary{
		Text:       text,
		Confidence: total / float64(len(parts)),
		WordCount:  len(strings.Fields(text)),
	}
}

type serialized struct {
	mu    sync.Mutex
	inner Oracle
}

// Serialized guards an engine that must not see concurrent callers.
func Serialized(o Oracle) Oracle {
	return &serialized{inner: o}
}

func (s *serialized) Detect(ctx context.Context, img image.Image) ([]Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.inner.Detect(ctx, img)
}

type timeoutOracle struct {
	inner   Oracle
	timeout time.Duration
}

// WithTimeout bounds every call to d. A timed out call keeps running in the
// background until the engine returns; its result is discarded. A zero or
// negative d disables the bound.
func WithTimeout(o Oracle, d time.Duration) Oracle {
	if d <= 0 {
		return o
	}
	return &timeoutOracle{inner: o, timeout: d}
}

func (t *timeoutOracle) Detect(ctx context.Context, img image.Image) ([]Region, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		regions []Region
		err     error
	}
	done := make(chan result, 1)
	go func() {
		regions, err := t.inner.Detect(ctx, img)
		done <- result{regions, err}
	}()

	select {
	case r := <-done:
		return r.regions, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrOracleTimeout
		}
		return nil, ctx.Err()
	}
}
