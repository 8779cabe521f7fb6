// Package pipeline runs the live capture loops: a fast acquisition loop that
// publishes camera frames and a slower processing loop that enhances the
// freshest frame, asks the detection gate about it and auto-captures
// positive frames into a drainable queue.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anime-shed/ocr-camera-go/internal/analytics"
	"github.com/anime-shed/ocr-camera-go/internal/camera"
	"github.com/anime-shed/ocr-camera-go/internal/detection"
	apperrors "github.com/anime-shed/ocr-camera-go/internal/errors"
	"github.com/anime-shed/ocr-camera-go/internal/logger"
	"github.com/anime-shed/ocr-camera-go/internal/observer"
	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrCameraOpen wraps every failure to open the camera in Start.
var ErrCameraOpen = errors.New("pipeline: camera open failed")

// Enhancer improves frame legibility. It must not retain or mutate src.
type Enhancer interface {
	Enhance(src image.Image) (*image.NRGBA, error)
}

// Detector is the detection gate.
type Detector interface {
	Evaluate(ctx context.Context, frame image.Image, now time.Time) detection.Verdict
}

// AnalyticsBuilder produces the comparison record for one capture.
type AnalyticsBuilder interface {
	Build(ctx context.Context, in analytics.Input) *models.FrameMetadata
}

// ArtifactStore persists capture images and returns a reference to them.
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Config is the loop pacing and capture policy.
type Config struct {
	CameraID            string
	RingCapacity        int
	AcquisitionInterval time.Duration
	ProcessingInterval  time.Duration
	IdleInterval        time.Duration
	ReadBackoff         time.Duration
	// QueueWithoutArtifact queues a capture with an empty artifact
	// reference when the artifact store fails. By default it is dropped.
	QueueWithoutArtifact bool
}

func DefaultConfig() Config {
	return Config{
		CameraID:            "camera_0",
		RingCapacity:        DefaultRingCapacity,
		AcquisitionInterval: 10 * time.Millisecond,
		ProcessingInterval:  500 * time.Millisecond,
		IdleInterval:        100 * time.Millisecond,
		ReadBackoff:         100 * time.Millisecond,
	}
}

// Deps are the collaborators of a Pipeline. Events and Clock are optional.
type Deps struct {
	Opener    camera.Opener
	Enhancer  Enhancer
	Detector  Detector
	Analytics AnalyticsBuilder
	Artifacts ArtifactStore
	Events    observer.Subject
	Clock     func() time.Time
}

type enhancedFrame struct {
	frame    *image.NRGBA
	sequence uint64
}

// Pipeline owns the two loops and the state they share.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *logrus.Entry

	frames   *FrameBuffer
	queue    *CaptureQueue
	stats    *Stats
	enhanced atomic.Pointer[enhancedFrame]

	mu       sync.Mutex
	running  bool
	starting bool
	message  string
	source   camera.Source
	cancel   context.CancelFunc
	loops    sync.WaitGroup
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Opener == nil:
		return nil, fmt.Errorf("pipeline: camera opener is required")
	case deps.Enhancer == nil:
		return nil, fmt.Errorf("pipeline: enhancer is required")
	case deps.Detector == nil:
		return nil, fmt.Errorf("pipeline: detector is required")
	case deps.Analytics == nil:
		return nil, fmt.Errorf("pipeline: analytics builder is required")
	case deps.Artifacts == nil:
		return nil, fmt.Errorf("pipeline: artifact store is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	def := DefaultConfig()
	if cfg.CameraID == "" {
		cfg.CameraID = def.CameraID
	}
	if cfg.AcquisitionInterval <= 0 {
		cfg.AcquisitionInterval = def.AcquisitionInterval
	}
	if cfg.ProcessingInterval <= 0 {
		cfg.ProcessingInterval = def.ProcessingInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.ReadBackoff <= 0 {
		cfg.ReadBackoff = def.ReadBackoff
	}

	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		log:    logger.WithComponent("pipeline").WithField("camera_id", cfg.CameraID),
		frames: NewFrameBuffer(cfg.RingCapacity),
		queue:  NewCaptureQueue(),
		stats:  &Stats{},
	}, nil
}

// Start opens the camera and launches both loops. Calling it while running
// or while another Start is opening the device is a no-op. When the camera
// cannot be opened the pipeline stays stopped and the error is returned.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running || p.starting {
		p.mu.Unlock()
		return nil
	}
	p.starting = true
	p.mu.Unlock()

	// Opening a device can take seconds; status readers must not wait on it.
	p.log.Info("Starting camera")
	src, err := p.deps.Opener(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.starting = false
	if err != nil {
		p.message = fmt.Sprintf("failed to open camera %s", p.cfg.CameraID)
		p.log.WithError(err).Error("Failed to open camera")
		return apperrors.NewCameraError(p.message, fmt.Errorf("%w: %w", ErrCameraOpen, err))
	}

	// Loops outlive the request that started them.
	loopCtx, cancel := context.WithCancel(context.Background())
	p.source = src
	p.cancel = cancel
	p.running = true
	p.message = ""
	p.stats.resetWindow()

	p.loops.Add(2)
	go p.acquisitionLoop(loopCtx, src)
	go p.processingLoop(loopCtx)

	p.publish(observer.CaptureEvent{EventType: observer.PipelineStarted})
	p.log.Info("Camera started successfully")
	return nil
}

// Stop signals both loops and releases the camera before returning. It does
// not wait for an in-flight enhancement or OCR call; use Wait for that.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.log.Info("Stopping camera")
	p.cancel()
	src := p.source
	p.source = nil
	p.cancel = nil
	p.running = false
	err := src.Release()
	if err != nil {
		p.message = "camera release failed"
	}
	p.mu.Unlock()

	p.publish(observer.CaptureEvent{EventType: observer.PipelineStopped})
	if err != nil {
		p.log.WithError(err).Warn("Camera release failed")
		return apperrors.NewCameraError("failed to release camera", err)
	}
	p.log.Info("Camera stopped")
	return nil
}

// Wait blocks until every loop started so far has returned.
func (p *Pipeline) Wait() {
	p.loops.Wait()
}

// Shutdown stops the pipeline and waits for the loops or ctx, whichever
// comes first.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	stopErr := p.Stop()

	done := make(chan struct{})
	go func() {
		p.loops.Wait()
		close(done)
	}()

	select {
	case <-done:
		return stopErr
	case <-ctx.Done():
		return fmt.Errorf("pipeline: waiting for loops: %w", ctx.Err())
	}
}

func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) Status() models.PipelineStatus {
	p.mu.Lock()
	running, message := p.running, p.message
	p.mu.Unlock()

	return models.PipelineStatus{
		Running:       running,
		PipelineStats: p.stats.Snapshot(),
		Message:       message,
	}
}

func (p *Pipeline) SnapshotStats() models.PipelineStats {
	return p.stats.Snapshot()
}

// DrainCaptureQueue returns every capture queued since the previous drain.
func (p *Pipeline) DrainCaptureQueue() []models.CaptureEntry {
	return p.queue.Drain()
}

// CurrentEnhancedFrame returns the enhanced version of the latest frame,
// enhancing on demand when the processing loop has not reached it yet.
// It returns nil before the first frame.
func (p *Pipeline) CurrentEnhancedFrame() (*image.NRGBA, error) {
	frame, seq := p.frames.Current()
	if frame == nil {
		return nil, nil
	}
	if cached := p.enhanced.Load(); cached != nil && cached.sequence == seq {
		return cached.frame, nil
	}

	out, err := p.deps.Enhancer.Enhance(frame)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to enhance current frame", err)
	}
	p.enhanced.Store(&enhancedFrame{frame: out, sequence: seq})
	return out, nil
}

// Frames exposes the shared frame buffer for read-only inspection.
func (p *Pipeline) Frames() *FrameBuffer {
	return p.frames
}

func (p *Pipeline) acquisitionLoop(ctx context.Context, src camera.Source) {
	defer p.loops.Done()

	for ctx.Err() == nil {
		wait := p.acquireOnce(ctx, src)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// acquireOnce reads one frame and returns how long to pause afterwards.
func (p *Pipeline) acquireOnce(ctx context.Context, src camera.Source) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("Recovered from panic in acquisition loop")
			wait = p.cfg.ReadBackoff
		}
	}()

	frame, err := src.Read()
	if err != nil || frame == nil {
		if ctx.Err() != nil {
			return 0
		}
		p.log.WithError(err).Debug("Failed to read frame from camera")
		p.publish(observer.CaptureEvent{EventType: observer.FrameReadFailed, ErrorMessage: errString(err)})
		return p.cfg.ReadBackoff
	}

	p.stats.frameRead(p.deps.Clock())
	p.frames.Publish(frame)
	return p.cfg.AcquisitionInterval
}

func (p *Pipeline) processingLoop(ctx context.Context) {
	defer p.loops.Done()

	// Cancellation is observed between iterations only. A frame already
	// handed to the oracle finishes and its capture is queued.
	work := context.WithoutCancel(ctx)

	var lastSeq uint64
	for ctx.Err() == nil {
		var wait time.Duration
		lastSeq, wait = p.processOnce(work, lastSeq)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// processOnce handles the freshest frame if it is newer than lastSeq. Frames
// published in between are skipped.
func (p *Pipeline) processOnce(ctx context.Context, lastSeq uint64) (seq uint64, wait time.Duration) {
	frame, seq := p.frames.Current()
	if frame == nil || seq == lastSeq {
		return lastSeq, p.cfg.IdleInterval
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("Recovered from panic in processing loop")
			wait = p.cfg.ProcessingInterval
		}
	}()

	enhanced, err := p.deps.Enhancer.Enhance(frame)
	if err != nil {
		p.log.WithError(err).Warn("Frame enhancement failed, skipping frame")
		return seq, p.cfg.ProcessingInterval
	}
	p.stats.enhancedFrames.Add(1)
	p.enhanced.Store(&enhancedFrame{frame: enhanced, sequence: seq})

	verdict := p.deps.Detector.Evaluate(ctx, enhanced, p.deps.Clock())
	if !verdict.HasText {
		return seq, p.cfg.ProcessingInterval
	}

	p.stats.detectedText.Add(1)
	isCode := detection.LooksLikeCode(verdict.Preview)
	kind := "TEXT"
	if isCode {
		kind = "CODE"
	}
	p.log.WithFields(logrus.Fields{
		"confidence": verdict.Confidence,
		"type":       kind,
		"preview":    truncate(verdict.Preview, 50),
	}).Info("Text detected")
	p.publish(observer.CaptureEvent{
		EventType:  observer.TextDetected,
		Confidence: verdict.Confidence,
		Metadata:   map[string]interface{}{"is_code": isCode},
	})

	p.autoCapture(ctx, frame, enhanced, verdict, isCode)
	return seq, p.cfg.ProcessingInterval
}

// autoCapture stores the enhanced frame, builds its analytics record and
// queues the entry. Failures are logged and never reach the loop.
func (p *Pipeline) autoCapture(ctx context.Context, raw image.Image, enhanced *image.NRGBA, verdict detection.Verdict, isCode bool) {
	start := time.Now()
	now := p.deps.Clock()
	id := uuid.NewString()
	name := fmt.Sprintf("capture_%s_%s.png", now.Format("20060102_150405"), id[:8])

	artifact, err := p.storeArtifact(ctx, name, enhanced)
	if err != nil {
		p.log.WithError(err).WithField("artifact", name).Error("Failed to persist capture artifact")
		p.publish(observer.CaptureEvent{EventType: observer.CaptureFailed, CaptureID: id, ErrorMessage: err.Error()})
		if !p.cfg.QueueWithoutArtifact {
			return
		}
		artifact = ""
	}

	record := p.deps.Analytics.Build(ctx, analytics.Input{
		CameraID:    p.cfg.CameraID,
		Timestamp:   now,
		Raw:         raw,
		Enhanced:    enhanced,
		EnhancedOCR: verdict.Summary,
	})

	p.queue.Append(models.CaptureEntry{
		ID:         id,
		Artifact:   artifact,
		Timestamp:  now,
		Confidence: verdict.Confidence,
		Preview:    verdict.Preview,
		IsCode:     isCode,
		CameraID:   p.cfg.CameraID,
		Analytics:  record,
	})
	p.stats.autoCaptures.Add(1)

	fields := logrus.Fields{
		"artifact":   artifact,
		"confidence": verdict.Confidence,
		"is_code":    isCode,
	}
	if record != nil {
		fields["blur_variance"] = record.BlurVariance
		fields["accuracy_improvement"] = record.AccuracyImprovement
	}
	p.log.WithFields(fields).Info("Auto-captured frame")
	p.publish(observer.CaptureEvent{
		EventType:      observer.CaptureCreated,
		CaptureID:      id,
		Confidence:     verdict.Confidence,
		ProcessingTime: time.Since(start),
	})
}

func (p *Pipeline) storeArtifact(ctx context.Context, name string, frame *image.NRGBA) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return p.deps.Artifacts.Save(ctx, name, buf.Bytes(), "image/png")
}

func (p *Pipeline) publish(event observer.CaptureEvent) {
	if p.deps.Events == nil {
		return
	}
	event.CameraID = p.cfg.CameraID
	event.Timestamp = p.deps.Clock()
	p.deps.Events.NotifyObservers(context.Background(), event)
}

// sleep pauses for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
