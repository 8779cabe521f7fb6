package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anime-shed/ocr-camera-go/internal/analytics"
	"github.com/anime-shed/ocr-camera-go/internal/analyzer"
	"github.com/anime-shed/ocr-camera-go/internal/batch"
	"github.com/anime-shed/ocr-camera-go/internal/camera"
	"github.com/anime-shed/ocr-camera-go/internal/config"
	"github.com/anime-shed/ocr-camera-go/internal/detection"
	"github.com/anime-shed/ocr-camera-go/internal/enhancer"
	"github.com/anime-shed/ocr-camera-go/internal/factory"
	"github.com/anime-shed/ocr-camera-go/internal/logger"
	"github.com/anime-shed/ocr-camera-go/internal/observer"
	"github.com/anime-shed/ocr-camera-go/internal/pipeline"
	"github.com/anime-shed/ocr-camera-go/internal/repository"
	"github.com/anime-shed/ocr-camera-go/internal/service"
	"github.com/anime-shed/ocr-camera-go/internal/storage"
	"github.com/anime-shed/ocr-camera-go/internal/transport"
	"github.com/anime-shed/ocr-camera-go/pkg/validation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Overrides replaces production collaborators, mostly for tests. Nil
// fields keep the configured default.
type Overrides struct {
	Opener camera.Opener
	Engine factory.EngineFunc
}

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	registry *prometheus.Registry
	events   *observer.EventPublisher
	oracles  *factory.OracleFactory
	pipeline *pipeline.Pipeline
	db       *repository.DB
	pool     *batch.WorkerPool
	drainer  *batch.Drainer
	handler  http.Handler

	stopDrainer context.CancelFunc
	drainerDone chan struct{}
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	return NewContainerWith(ctx, cfg, Overrides{})
}

// NewContainerWith builds the graph with some collaborators replaced.
func NewContainerWith(ctx context.Context, cfg *config.Config, ov Overrides) (*Container, error) {
	c := &Container{config: cfg}
	if err := c.build(ctx, ov); err != nil {
		c.closeResources()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, ov Overrides) error {
	cfg := c.config

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.events = observer.NewEventPublisher()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	metrics, err := observer.NewMetricsObserver(c.registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	c.events.Subscribe(metrics)

	engine := ov.Engine
	if engine == nil {
		engine = factory.TesseractEngine
	}
	c.oracles = factory.NewOracleFactory(engine, cfg.OCR.Languages, cfg.Pipeline.OracleTimeout)
	oracle, err := c.oracles.Default()
	if err != nil {
		return fmt.Errorf("create OCR engine: %w", err)
	}

	opener := ov.Opener
	if opener == nil {
		opener, err = factory.NewCameraOpener(cfg.Camera)
		if err != nil {
			return err
		}
	}

	artifacts, err := factory.NewArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}

	metricsCalc := analyzer.NewMetricsCalculator()
	qualityValidator := validation.NewQualityValidator()

	c.pipeline, err = pipeline.New(pipeline.Config{
		CameraID:             fmt.Sprintf("camera_%d", cfg.Camera.ID),
		RingCapacity:         cfg.Pipeline.RingCapacity,
		AcquisitionInterval:  cfg.Pipeline.AcquisitionInterval,
		ProcessingInterval:   cfg.Pipeline.ProcessingInterval,
		IdleInterval:         cfg.Pipeline.IdleInterval,
		ReadBackoff:          cfg.Pipeline.ReadBackoff,
		QueueWithoutArtifact: cfg.Pipeline.QueueWithoutArtifact,
	}, pipeline.Deps{
		Opener:   opener,
		Enhancer: enhancer.New(enhancer.DefaultOptions()),
		Detector: detection.NewGate(oracle, detection.Config{
			Cooldown:  cfg.Pipeline.Cooldown,
			Threshold: cfg.Pipeline.ConfidenceThreshold,
		}),
		Analytics: analytics.NewBuilder(oracle, metricsCalc, qualityValidator),
		Artifacts: artifacts,
		Events:    c.events,
	})
	if err != nil {
		return err
	}
	if err := observer.RegisterPipelineGauges(c.registry, c.pipeline.Status); err != nil {
		return fmt.Errorf("register pipeline gauges: %w", err)
	}

	c.db, err = repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	repo := repository.NewSQLCaptureRepository(c.db)

	if cfg.Batch.Enabled {
		c.pool = batch.NewWorkerPool(cfg.Batch.Workers)
		c.drainer = batch.NewDrainer(c.pipeline, repo, c.pool, cfg.Batch.DrainInterval, c.events)
	}

	fetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, storage.WithRetry(3, 200*time.Millisecond))

	c.handler = transport.NewHandler(transport.Options{
		Camera:   service.NewCameraService(c.pipeline),
		Captures: service.NewCaptureService(repo, artifacts),
		Documents: service.NewDocumentService(
			validation.NewURLValidator(),
			qualityValidator,
			fetcher,
			metricsCalc,
			c.oracles,
			cfg.ImageFetchTimeout,
		),
		Metrics:            promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		EnableDrain:        !cfg.Batch.Enabled,
	})
	return nil
}

// Start launches the background drainer and, when configured, the camera.
// A camera that fails to open is logged; the service still comes up so it
// can be started later through the API.
func (c *Container) Start(ctx context.Context) {
	if c.drainer != nil && c.drainerDone == nil {
		runCtx, cancel := context.WithCancel(context.Background())
		c.stopDrainer = cancel
		c.drainerDone = make(chan struct{})
		go func() {
			defer close(c.drainerDone)
			c.drainer.Run(runCtx)
		}()
	}

	if c.config.Camera.AutoStart {
		if err := c.pipeline.Start(ctx); err != nil {
			logger.WithError(err).Warn("Camera auto-start failed")
		}
	}
}

// Close stops the camera, lets the drainer persist what is left and
// releases every resource.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if err := c.pipeline.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if c.stopDrainer != nil {
		c.stopDrainer()
		select {
		case <-c.drainerDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for drainer: %w", ctx.Err()))
		}
	}

	if err := c.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Container) closeResources() error {
	var errs []error
	if c.pool != nil {
		c.pool.Close()
	}
	if c.oracles != nil {
		if err := c.oracles.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close OCR engines: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Pipeline exposes the capture pipeline.
func (c *Container) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}
