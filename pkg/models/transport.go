package models

// DocumentAnalysisRequest asks for OCR and classification of a remote image.
type DocumentAnalysisRequest struct {
	URL       string   `json:"url" binding:"required,url"`
	Languages []string `json:"languages,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CameraControlResponse is returned by start and stop.
type CameraControlResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Stats   PipelineStatus `json:"stats"`
}

// DrainResponse carries the captures removed from the queue by one drain call.
type DrainResponse struct {
	Count    int            `json:"count"`
	Captures []CaptureEntry `json:"captures"`
}
