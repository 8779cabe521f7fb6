package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anime-shed/ocr-camera-go/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingObserver struct {
	name string
	mu   sync.Mutex
	got  []CaptureEvent
	wg   *sync.WaitGroup
}

func (r *recordingObserver) OnEvent(ctx context.Context, e CaptureEvent) {
	r.mu.Lock()
	r.got = append(r.got, e)
	r.mu.Unlock()
	r.wg.Done()
}

func (r *recordingObserver) GetObserverName() string { return r.name }

type panickingObserver struct{ wg *sync.WaitGroup }

func (p *panickingObserver) OnEvent(ctx context.Context, e CaptureEvent) {
	defer p.wg.Done()
	panic("boom")
}

func (p *panickingObserver) GetObserverName() string { return "panicking" }

func TestEventPublisher_NotifiesAllObservers(t *testing.T) {
	var wg sync.WaitGroup
	pub := NewEventPublisher()
	a := &recordingObserver{name: "a", wg: &wg}
	b := &recordingObserver{name: "b", wg: &wg}
	pub.Subscribe(a)
	pub.Subscribe(b)
	pub.Subscribe(&panickingObserver{wg: &wg})

	wg.Add(3)
	pub.NotifyObservers(context.Background(), CaptureEvent{EventType: CaptureCreated, CaptureID: "c1"})
	wg.Wait()

	for _, obs := range []*recordingObserver{a, b} {
		if len(obs.got) != 1 || obs.got[0].CaptureID != "c1" {
			t.Errorf("Expected observer %s to get one event, got %+v", obs.name, obs.got)
		}
		if obs.got[0].Timestamp.IsZero() {
			t.Errorf("Expected timestamp to be filled in for %s", obs.name)
		}
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	var wg sync.WaitGroup
	pub := NewEventPublisher()
	a := &recordingObserver{name: "a", wg: &wg}
	pub.Subscribe(a)
	pub.Unsubscribe(a)

	pub.NotifyObservers(context.Background(), CaptureEvent{EventType: TextDetected})
	time.Sleep(10 * time.Millisecond)

	if len(a.got) != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", len(a.got))
	}
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsObserver(reg)
	if err != nil {
		t.Fatalf("Expected registration to succeed, got %v", err)
	}

	m.OnEvent(context.Background(), CaptureEvent{EventType: TextDetected, Confidence: 0.9})
	m.OnEvent(context.Background(), CaptureEvent{EventType: TextDetected, Confidence: 0.7})
	m.OnEvent(context.Background(), CaptureEvent{EventType: CaptureCreated})

	if got := testutil.ToFloat64(m.events.WithLabelValues(string(TextDetected))); got != 2 {
		t.Errorf("Expected 2 text_detected events, got %f", got)
	}
	if m.GetMetrics()[string(CaptureCreated)] != int64(1) {
		t.Errorf("Expected 1 capture_created total, got %v", m.GetMetrics()[string(CaptureCreated)])
	}

	if _, err := NewMetricsObserver(reg); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestRegisterPipelineGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	status := models.PipelineStatus{Running: true, PipelineStats: models.PipelineStats{TotalFrames: 42, FPS: 29.5}}

	if err := RegisterPipelineGauges(reg, func() models.PipelineStatus { return status }); err != nil {
		t.Fatalf("Expected registration to succeed, got %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	values := map[string]float64{}
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	if values["ocr_camera_frames_total"] != 42 {
		t.Errorf("Expected frames_total 42, got %f", values["ocr_camera_frames_total"])
	}
	if values["ocr_camera_running"] != 1 {
		t.Errorf("Expected running 1, got %f", values["ocr_camera_running"])
	}
}
