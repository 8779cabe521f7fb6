package batch

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anime-shed/ocr-camera-go/internal/analytics"
	"github.com/anime-shed/ocr-camera-go/internal/classifier"
	"github.com/anime-shed/ocr-camera-go/internal/logger"
	"github.com/anime-shed/ocr-camera-go/internal/observer"
	"github.com/anime-shed/ocr-camera-go/internal/repository"
	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"github.com/sirupsen/logrus"
)

// persistTimeout bounds one persist job. Jobs do not inherit cancellation
// from the drain loop, so entries already taken off the queue are still
// written during shutdown.
const persistTimeout = 10 * time.Second

// CaptureSource is drained on every tick.
type CaptureSource interface {
	DrainCaptureQueue() []models.CaptureEntry
}

// Drainer periodically empties the capture queue and persists each entry
// on the worker pool. Entries are never redelivered: a failed persist is
// logged and the entry is gone.
type Drainer struct {
	source   CaptureSource
	repo     repository.CaptureRepository
	pool     *WorkerPool
	interval time.Duration
	events   observer.Subject
	log      *logrus.Entry
}

func NewDrainer(source CaptureSource, repo repository.CaptureRepository, pool *WorkerPool, interval time.Duration, events observer.Subject) *Drainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Drainer{
		source:   source,
		repo:     repo,
		pool:     pool,
		interval: interval,
		events:   events,
		log:      logger.WithComponent("batch"),
	}
}

// Run drains on every tick until ctx ends, then drains one last time and
// waits for the pool.
func (d *Drainer) Run(ctx context.Context) {
	d.pool.Start()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.DrainOnce(ctx)
			d.pool.Wait()
			return
		case <-ticker.C:
			d.DrainOnce(ctx)
		}
	}
}

// DrainOnce hands every queued capture to the pool and returns how many
// were taken off the queue. Cancelling ctx afterwards does not abort the
// submitted jobs.
func (d *Drainer) DrainOnce(ctx context.Context) int {
	entries := d.source.DrainCaptureQueue()
	for _, entry := range entries {
		entry := entry
		job := func() {
			jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
			defer cancel()
			_ = d.Persist(jobCtx, entry)
		}
		if !d.pool.Submit(job) {
			job()
		}
	}
	if len(entries) > 0 {
		d.log.WithField("count", len(entries)).Debug("Drained capture queue")
	}
	return len(entries)
}

// Persist classifies the capture's text with the same policy as the live
// path and stores the capture, its analytics and its OCR result.
func (d *Drainer) Persist(ctx context.Context, entry models.CaptureEntry) error {
	start := time.Now()
	record, result := BuildRecords(entry)

	err := d.repo.SaveCaptureWithResult(ctx, record, result)

	event := observer.CaptureEvent{
		EventType:      observer.CapturePersisted,
		CameraID:       entry.CameraID,
		CaptureID:      entry.ID,
		Confidence:     entry.Confidence,
		ProcessingTime: time.Since(start),
		Metadata: map[string]interface{}{
			"content_type": string(record.ContentType),
			"code_blocks":  len(result.CodeBlocks),
		},
	}
	if err != nil {
		event.EventType = observer.CapturePersistErr
		event.ErrorMessage = err.Error()
		d.log.WithError(err).WithField("capture_id", entry.ID).Error("Failed to persist capture")
	}
	if d.events != nil {
		d.events.NotifyObservers(ctx, event)
	}
	return err
}

// BuildRecords derives the persisted capture and OCR result from a queue
// entry. Without analytics the preview is the only text available.
func BuildRecords(entry models.CaptureEntry) (*models.CaptureRecord, *models.OCRResult) {
	text := entry.Preview
	confidence := entry.Confidence * 100
	var processingSec float64
	if md := entry.Analytics; md != nil {
		text = md.EnhancedText
		confidence = md.EnhancedConfidence
		if ms, ok := md.Metrics[analytics.MetricProcessingMs].(int64); ok {
			processingSec = float64(ms) / 1000
		}
	}

	verdict := classifier.Analyze(text)
	result := &models.OCRResult{
		CaptureID:         entry.ID,
		ExtractedText:     text,
		Confidence:        confidence,
		WordCount:         len(strings.Fields(text)),
		CharacterCount:    utf8.RuneCountInString(text),
		LineCount:         verdict.TotalLines,
		ContentType:       verdict.ContentType,
		ProcessingTimeSec: processingSec,
	}
	if verdict.ContentType != models.ContentText {
		result.CodeBlocks = verdict.CodeBlocks
	}

	record := &models.CaptureRecord{
		CaptureEntry: entry,
		ContentType:  verdict.ContentType,
	}
	return record, result
}
