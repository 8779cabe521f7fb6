// Package detection decides whether a frame carries OCR-worthy text.
package detection

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/anime-shed/ocr-camera-go/internal/logger"
	"github.com/anime-shed/ocr-camera-go/internal/ocr"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCooldown  = 2 * time.Second
	DefaultThreshold = 0.65

	positivePreviewWords = 10
	negativePreviewRunes = 50
)

// Outcome separates the three kinds of verdict.
type Outcome string

const (
	OutcomePositive   Outcome = "positive"
	OutcomeNegative   Outcome = "negative"
	OutcomeSuppressed Outcome = "suppressed"
)

// Verdict is the result of one evaluation. A suppressed verdict and a
// genuine negative both report HasText=false; Outcome tells them apart.
type Verdict struct {
	HasText    bool    `json:"has_text"`
	Confidence float64 `json:"confidence"`
	Preview    string  `json:"preview"`
	Outcome    Outcome `json:"outcome"`

	// Summary is the oracle output behind the verdict. Empty when suppressed
	// or when the oracle failed.
	Summary ocr.Summary `json:"-"`
}

// Config holds the gate policy.
type Config struct {
	Cooldown  time.Duration
	Threshold float64
}

func DefaultConfig() Config {
	return Config{Cooldown: DefaultCooldown, Threshold: DefaultThreshold}
}

// Gate applies a cooldown and a confidence threshold in front of an oracle.
type Gate struct {
	oracle ocr.Oracle
	cfg    Config

	mu            sync.Mutex
	lastDetection time.Time
}

func NewGate(oracle ocr.Oracle, cfg Config) *Gate {
	return &Gate{oracle: oracle, cfg: cfg}
}

// LastDetection returns the time of the most recent positive verdict.
func (g *Gate) LastDetection() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastDetection
}

// Evaluate runs the oracle on frame unless now falls inside the cooldown.
// Only a positive verdict moves the cooldown window.
func (g *Gate) Evaluate(ctx context.Context, frame image.Image, now time.Time) Verdict {
	g.mu.Lock()
	last := g.lastDetection
	g.mu.Unlock()

	if !last.IsZero() && now.Sub(last) < g.cfg.Cooldown {
		return Verdict{Outcome: OutcomeSuppressed}
	}

	regions, err := g.oracle.Detect(ctx, frame)
	if err != nil {
		logger.WithComponent("detection").WithError(err).Warn("OCR oracle failed, treating frame as negative")
		return Verdict{Outcome: OutcomeNegative}
	}

	summary := ocr.Summarize(regions)
	if summary.Text != "" && summary.Confidence >= g.cfg.Threshold {
		g.mu.Lock()
		g.lastDetection = now
		g.mu.Unlock()

		logger.WithComponent("detection").WithFields(logrus.Fields{
			"confidence": summary.Confidence,
			"words":      summary.WordCount,
		}).Debug("Text detected")

		return Verdict{
			HasText:    true,
			Confidence: summary.Confidence,
			Preview:    firstWords(summary.Text, positivePreviewWords),
			Outcome:    OutcomePositive,
			Summary:    summary,
		}
	}

	return Verdict{
		Confidence: summary.Confidence,
		Preview:    firstRunes(summary.Text, negativePreviewRunes),
		Outcome:    OutcomeNegative,
		Summary:    summary,
	}
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func firstRunes(text string, n int) string {
	r := []rune(text)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

var codeTokens = []string{
	"def ", "class ", "import ", "function", "const ", "let ", "var ",
	"public ", "private ", "void ", "return ",
	"if(", "for(", "while(",
	"{", "}", "=>", "==", "!=", "//", "/*",
}

// LooksLikeCode is a cheap structural check, not a language detector.
func LooksLikeCode(text string) bool {
	for _, tok := range codeTokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
