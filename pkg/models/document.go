package models

import "time"

// ContentType is the classifier verdict for a body of extracted text.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentCode  ContentType = "code"
	ContentMixed ContentType = "mixed"
)

// CodeBlock is a run of consecutive code-like lines. Line numbers are
// 1-indexed and inclusive.
type CodeBlock struct {
	Code      string `json:"code"`
	Language  string `json:"language"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
}

// OCRResult is the persisted extraction for a capture or a document.
type OCRResult struct {
	ID                string      `json:"id,omitempty"`
	CaptureID         string      `json:"capture_id,omitempty"`
	ExtractedText     string      `json:"extracted_text"`
	Confidence        float64     `json:"confidence"`
	WordCount         int         `json:"word_count"`
	CharacterCount    int         `json:"character_count"`
	LineCount         int         `json:"line_count"`
	ContentType       ContentType `json:"content_type"`
	ProcessingTimeSec float64     `json:"processing_time_sec"`
	CodeBlocks        []CodeBlock `json:"code_blocks,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// DocumentAnalysis is returned for a still image fetched by URL.
type DocumentAnalysis struct {
	ImageURL          string         `json:"image_url"`
	Timestamp         string         `json:"timestamp"`
	ProcessingTimeSec float64        `json:"processing_time_sec"`
	Width             int            `json:"width"`
	Height            int            `json:"height"`
	Quality           QualityMetrics `json:"quality"`
	QualityIssues     []string       `json:"quality_issues,omitempty"`
	OCR               OCRResult      `json:"ocr"`
}

// CaptureRecord is a persisted capture joined with its analytics.
type CaptureRecord struct {
	CaptureEntry
	ContentType ContentType `json:"content_type"`
	CreatedAt   time.Time   `json:"created_at"`
}
