package models

import "time"

// QualityMetrics are derived from a single frame and attached to analytics records.
type QualityMetrics struct {
	BlurVariance     float64 `json:"blur_variance"`
	IlluminationMean float64 `json:"illumination_mean"`
}

// FrameMetadata is the analytics record built once per auto-capture. It
// compares OCR on the enhanced frame against OCR on the raw frame.
// Confidences are percentages in [0,100].
type FrameMetadata struct {
	ID                  string                 `json:"id"`
	Timestamp           time.Time              `json:"timestamp"`
	CameraID            string                 `json:"camera_id"`
	BlurVariance        float64                `json:"blur_variance"`
	IlluminationMean    float64                `json:"illumination_mean"`
	Enhanced            bool                   `json:"enhanced"`
	EnhancedText        string                 `json:"enhanced_ocr_text"`
	EnhancedConfidence  float64                `json:"enhanced_ocr_confidence"`
	EnhancedWordCount   int                    `json:"enhanced_word_count"`
	RawText             string                 `json:"raw_ocr_text"`
	RawConfidence       float64                `json:"raw_ocr_confidence"`
	RawWordCount        int                    `json:"raw_word_count"`
	AccuracyImprovement float64                `json:"accuracy_improvement"`
	Metrics             map[string]interface{} `json:"metrics,omitempty"`
}

// CaptureEntry is queued by the capture pipeline on a positive detection and
// handed to exactly one consumer of the drain operation.
type CaptureEntry struct {
	ID         string         `json:"id"`
	Artifact   string         `json:"artifact"`
	Timestamp  time.Time      `json:"timestamp"`
	Confidence float64        `json:"confidence"`
	Preview    string         `json:"preview"`
	IsCode     bool           `json:"is_code"`
	CameraID   string         `json:"camera_id"`
	Analytics  *FrameMetadata `json:"analytics,omitempty"`
}

// PipelineStats is a point-in-time snapshot of the capture pipeline counters.
type PipelineStats struct {
	TotalFrames    int64   `json:"total_frames"`
	EnhancedFrames int64   `json:"enhanced_frames"`
	DetectedText   int64   `json:"detected_text"`
	AutoCaptures   int64   `json:"auto_captures"`
	FPS            float64 `json:"fps"`
}

// PipelineStatus is what the status surface reports.
type PipelineStatus struct {
	Running bool `json:"running"`
	PipelineStats
	Message string `json:"message,omitempty"`
}
