package observer

import (
	"context"
	"sync"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver turns pipeline events into Prometheus counters.
type MetricsObserver struct {
	events      *prometheus.CounterVec
	confidence  prometheus.Histogram
	persistTime prometheus.Histogram

	mu     sync.RWMutex
	totals map[EventType]int64
}

// NewMetricsObserver registers its collectors on reg.
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocr_camera",
			Name:      "events_total",
			Help:      "Pipeline events by type.",
		}, []string{"event_type"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ocr_camera",
			Name:      "detection_confidence",
			Help:      "Aggregate OCR confidence of positive detections.",
			Buckets:   []float64{0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		}),
		persistTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ocr_camera",
			Name:      "capture_persist_seconds",
			Help:      "Time spent persisting one drained capture.",
			Buckets:   prometheus.DefBuckets,
		}),
		totals: make(map[EventType]int64),
	}

	for _, c := range []prometheus.Collector{o.events, o.confidence, o.persistTime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event CaptureEvent) {
	o.events.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case TextDetected:
		o.confidence.Observe(event.Confidence)
	case CapturePersisted:
		o.persistTime.Observe(event.ProcessingTime.Seconds())
	}

	o.mu.Lock()
	o.totals[event.EventType]++
	o.mu.Unlock()
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns event totals keyed by event type.
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]interface{}, len(o.totals))
	for k, v := range o.totals {
		out[string(k)] = v
	}
	return out
}

// RegisterPipelineGauges exposes the pipeline counters read from snapshot.
func RegisterPipelineGauges(reg prometheus.Registerer, snapshot func() models.PipelineStatus) error {
	gauge := func(name, help string, value func(models.PipelineStatus) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ocr_camera",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(snapshot()) })
	}

	collectors := []prometheus.Collector{
		gauge("running", "1 while the capture loops run.", func(s models.PipelineStatus) float64 {
			if s.Running {
				return 1
			}
			return 0
		}),
		gauge("fps", "Frames read per second over the last window.", func(s models.PipelineStatus) float64 { return s.FPS }),
		gauge("frames_total", "Frames read from the camera.", func(s models.PipelineStatus) float64 { return float64(s.TotalFrames) }),
		gauge("enhanced_frames_total", "Frames enhanced by the processing loop.", func(s models.PipelineStatus) float64 { return float64(s.EnhancedFrames) }),
		gauge("detections_total", "Positive text detections.", func(s models.PipelineStatus) float64 { return float64(s.DetectedText) }),
		gauge("auto_captures_total", "Captures appended to the queue.", func(s models.PipelineStatus) float64 { return float64(s.AutoCaptures) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
