package detection

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/anime-shed/ocr-camera-go/internal/ocr"
)

type scriptedOracle struct {
	regions []ocr.Region
	err     error
	calls   int
}

func (s *scriptedOracle) Detect(ctx context.Context, img image.Image) ([]ocr.Region, error) {
	s.calls++
	return s.regions, s.err
}

var frame = image.NewGray(image.Rect(0, 0, 4, 4))

func TestEvaluate_PositiveAboveThreshold(t *testing.T) {
	oracle := &scriptedOracle{regions: []ocr.Region{{Text: "hello world", Confidence: 0.9}}}
	gate := NewGate(oracle, DefaultConfig())
	now := time.Unix(1000, 0)

	v := gate.Evaluate(context.Background(), frame, now)

	if !v.HasText || v.Outcome != OutcomePositive {
		t.Fatalf("Expected positive verdict, got %+v", v)
	}
	if v.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", v.Confidence)
	}
	if v.Preview != "hello world" {
		t.Errorf("Expected preview 'hello world', got %q", v.Preview)
	}
	if !gate.LastDetection().Equal(now) {
		t.Errorf("Expected last detection %v, got %v", now, gate.LastDetection())
	}
}

func TestEvaluate_CooldownSuppresses(t *testing.T) {
	oracle := &scriptedOracle{regions: []ocr.Region{{Text: "hello world", Confidence: 0.9}}}
	gate := NewGate(oracle, DefaultConfig())
	first := time.Unix(1000, 0)

	gate.Evaluate(context.Background(), frame, first)
	v := gate.Evaluate(context.Background(), frame, first.Add(1500*time.Millisecond))

	if v.HasText || v.Confidence != 0 || v.Preview != "" {
		t.Errorf("Expected empty suppressed verdict, got %+v", v)
	}
	if v.Outcome != OutcomeSuppressed {
		t.Errorf("Expected suppressed outcome, got %s", v.Outcome)
	}
	if !gate.LastDetection().Equal(first) {
		t.Errorf("Expected last detection unchanged at %v, got %v", first, gate.LastDetection())
	}
	if oracle.calls != 1 {
		t.Errorf("Expected oracle to be skipped during cooldown, got %d calls", oracle.calls)
	}

	v = gate.Evaluate(context.Background(), frame, first.Add(2*time.Second))
	if v.Outcome != OutcomePositive {
		t.Errorf("Expected positive after cooldown elapsed, got %s", v.Outcome)
	}
}

func TestEvaluate_BelowThresholdIsNegative(t *testing.T) {
	text := "a fairly long line of low confidence text that keeps on going for a while"
	oracle := &scriptedOracle{regions: []ocr.Region{{Text: text, Confidence: 0.4}}}
	gate := NewGate(oracle, DefaultConfig())

	v := gate.Evaluate(context.Background(), frame, time.Unix(1000, 0))

	if v.HasText || v.Outcome != OutcomeNegative {
		t.Fatalf("Expected genuine negative, got %+v", v)
	}
	if v.Confidence != 0.4 {
		t.Errorf("Expected confidence 0.4, got %f", v.Confidence)
	}
	if v.Preview != text[:50] {
		t.Errorf("Expected 50 character preview, got %q", v.Preview)
	}
	if !gate.LastDetection().IsZero() {
		t.Error("Expected cooldown untouched by a negative")
	}
}

func TestEvaluate_OracleFailure(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("engine crashed")}
	gate := NewGate(oracle, DefaultConfig())

	v := gate.Evaluate(context.Background(), frame, time.Unix(1000, 0))

	if v.HasText || v.Confidence != 0 || v.Preview != "" || v.Outcome != OutcomeNegative {
		t.Errorf("Expected empty negative verdict, got %+v", v)
	}
	if !gate.LastDetection().IsZero() {
		t.Error("Expected cooldown untouched by an oracle failure")
	}
}

func TestEvaluate_NoRegions(t *testing.T) {
	gate := NewGate(&scriptedOracle{}, DefaultConfig())

	v := gate.Evaluate(context.Background(), frame, time.Unix(1000, 0))
	if v.HasText || v.Confidence != 0 {
		t.Errorf("Expected empty negative, got %+v", v)
	}
}

func TestEvaluate_ConfidenceAveragesNonEmptyRegions(t *testing.T) {
	oracle := &scriptedOracle{regions: []ocr.Region{
		{Text: "int", Confidence: 0.6},
		{Text: " ", Confidence: 0.0},
		{Text: "main", Confidence: 0.8},
	}}
	gate := NewGate(oracle, DefaultConfig())

	v := gate.Evaluate(context.Background(), frame, time.Unix(1000, 0))
	if !v.HasText {
		t.Fatalf("Expected positive verdict with mean 0.7, got %+v", v)
	}
	if v.Confidence < 0.699 || v.Confidence > 0.701 {
		t.Errorf("Expected confidence 0.7, got %f", v.Confidence)
	}
}

func TestEvaluate_PreviewTruncatesToTenWords(t *testing.T) {
	words := strings.Fields("one two three four five six seven eight nine ten eleven twelve")
	var regions []ocr.Region
	for _, w := range words {
		regions = append(regions, ocr.Region{Text: w, Confidence: 0.95})
	}
	gate := NewGate(&scriptedOracle{regions: regions}, DefaultConfig())

	v := gate.Evaluate(context.Background(), frame, time.Unix(1000, 0))
	if v.Preview != "one two three four five six seven eight nine ten" {
		t.Errorf("Expected ten word preview, got %q", v.Preview)
	}
	if v.Summary.WordCount != 12 {
		t.Errorf("Expected summary to keep all 12 words, got %d", v.Summary.WordCount)
	}
}

func TestLooksLikeCode(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"def main():", true},
		{"if(x) { y(); }", true},
		{"a => b", true},
		{"// comment", true},
		{"x != y", true},
		{"return value", true},
		{"Meeting notes for Tuesday", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeCode(tt.text); got != tt.expected {
			t.Errorf("LooksLikeCode(%q): expected %v, got %v", tt.text, tt.expected, got)
		}
	}
}
