package factory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anime-shed/ocr-camera-go/internal/camera"
	"github.com/anime-shed/ocr-camera-go/internal/camera/opencv"
	"github.com/anime-shed/ocr-camera-go/internal/config"
	"github.com/anime-shed/ocr-camera-go/internal/ocr"
	"github.com/anime-shed/ocr-camera-go/internal/ocr/tesseract"
	"github.com/anime-shed/ocr-camera-go/internal/storage"
)

// CameraSource selects where frames come from.
type CameraSource string

const (
	// OpenCVSource reads a local capture device through gocv
	OpenCVSource CameraSource = "opencv"
	// SyntheticSource generates frames in memory
	SyntheticSource CameraSource = "synthetic"
	// DirectorySource replays image files in name order
	DirectorySource CameraSource = "directory"
)

// ArtifactBackend selects where capture images are written.
type ArtifactBackend string

const (
	// LocalBackend writes into a directory on disk
	LocalBackend ArtifactBackend = "local"
	// AzureBackend writes into an Azure blob container
	AzureBackend ArtifactBackend = "azure"
)

// NewCameraOpener returns the opener for the configured source.
func NewCameraOpener(cfg config.CameraConfig) (camera.Opener, error) {
	switch CameraSource(cfg.Source) {
	case OpenCVSource:
		return opencv.Opener(opencv.Settings{
			DeviceID: cfg.ID,
			Width:    cfg.Width,
			Height:   cfg.Height,
			FPS:      cfg.FPS,
		}), nil
	case SyntheticSource:
		return camera.SyntheticOpener(cfg.Width, cfg.Height), nil
	case DirectorySource:
		return camera.DirectoryOpener(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported camera source: %s", cfg.Source)
	}
}

// NewArtifactStore builds the configured artifact backend. The azure
// container is created when missing.
func NewArtifactStore(ctx context.Context, cfg config.ArtifactConfig) (storage.ArtifactStore, error) {
	switch ArtifactBackend(cfg.Backend) {
	case LocalBackend:
		store, err := storage.NewLocalArtifactStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case AzureBackend:
		store, err := storage.NewAzureArtifactStore(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported artifact backend: %s", cfg.Backend)
	}
}

// EngineFunc creates a raw OCR engine for a language set. The returned
// closer releases it.
type EngineFunc func(languages []string) (ocr.Oracle, io.Closer, error)

// TesseractEngine is the production EngineFunc.
func TesseractEngine(languages []string) (ocr.Oracle, io.Closer, error) {
	o, err := tesseract.New(languages)
	if err != nil {
		return nil, nil, err
	}
	return o, o, nil
}

// OracleFactory hands out one serialized engine per language set.
type OracleFactory struct {
	engine   EngineFunc
	allowed  map[string]bool
	defaults []string
	timeout  time.Duration

	mu      sync.Mutex
	oracles map[string]ocr.Oracle
	closers []io.Closer
}

// NewOracleFactory limits requests to the configured languages, which
// also form the default set.
func NewOracleFactory(engine EngineFunc, languages []string, timeout time.Duration) *OracleFactory {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	allowed := make(map[string]bool, len(languages))
	for _, l := range languages {
		allowed[l] = true
	}
	return &OracleFactory{
		engine:   engine,
		allowed:  allowed,
		defaults: languages,
		timeout:  timeout,
		oracles:  make(map[string]ocr.Oracle),
	}
}

// Default returns the engine for the configured languages.
func (f *OracleFactory) Default() (ocr.Oracle, error) {
	return f.ForLanguages(nil)
}

// ForLanguages returns a cached engine. Each engine is serialized and,
// when a timeout is configured, bounded by it.
func (f *OracleFactory) ForLanguages(languages []string) (ocr.Oracle, error) {
	if len(languages) == 0 {
		languages = f.defaults
	}
	set := make([]string, 0, len(languages))
	seen := make(map[string]bool, len(languages))
	for _, l := range languages {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		if !f.allowed[l] {
			return nil, fmt.Errorf("language %q is not configured", l)
		}
		seen[l] = true
		set = append(set, l)
	}
	if len(set) == 0 {
		set = f.defaults
	}
	sort.Strings(set)
	key := strings.Join(set, "+")

	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.oracles[key]; ok {
		return o, nil
	}

	engine, closer, err := f.engine(set)
	if err != nil {
		return nil, fmt.Errorf("create OCR engine for %s: %w", key, err)
	}
	o := ocr.Serialized(engine)
	if f.timeout > 0 {
		o = ocr.WithTimeout(o, f.timeout)
	}
	f.oracles[key] = o
	if closer != nil {
		f.closers = append(f.closers, closer)
	}
	return o, nil
}

// Close releases every engine created so far.
func (f *OracleFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	f.oracles = make(map[string]ocr.Oracle)
	return firstErr
}
