// Package camera abstracts the frame source behind the capture pipeline.
package camera

import (
	"context"
	"errors"
	"image"
)

// ErrReadFailed is returned by a source that produced no frame this time.
// Callers retry after a short backoff.
var ErrReadFailed = errors.New("camera: frame read failed")

// Source yields frames until released. Read is only ever called from one
// goroutine; Release may race with an in-flight Read and must be safe then.
type Source interface {
	Read() (image.Image, error)
	Release() error
}

// Opener opens a source. The pipeline calls it once per start.
type Opener func(ctx context.Context) (Source, error)
