package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirectorySource replays the images of a directory in name order, looping
// at the end. Useful for demos and regression runs without a device.
type DirectorySource struct {
	mu       sync.Mutex
	frames   []image.Image
	next     int
	released bool
}

func NewDirectorySource(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	src := &DirectorySource{}
	for _, name := range names {
		img, err := decodeFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		src.frames = append(src.frames, img)
	}
	if len(src.frames) == 0 {
		return nil, fmt.Errorf("no png or jpeg frames in %s", dir)
	}
	return src, nil
}

// DirectoryOpener opens a DirectorySource on every start.
func DirectoryOpener(dir string) Opener {
	return func(ctx context.Context) (Source, error) {
		return NewDirectorySource(dir)
	}
}

// SyntheticOpener opens a fresh SyntheticSource on every start.
func SyntheticOpener(width, height int) Opener {
	return func(ctx context.Context) (Source, error) {
		return NewSyntheticSource(width, height), nil
	}
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func (d *DirectorySource) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil, ErrReadFailed
	}
	img := d.frames[d.next]
	d.next = (d.next + 1) % len(d.frames)
	return img, nil
}

func (d *DirectorySource) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	return nil
}
