package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/anime-shed/ocr-camera-go/internal/errors"
	"github.com/anime-shed/ocr-camera-go/internal/logger"
	"github.com/anime-shed/ocr-camera-go/internal/service"
	"github.com/anime-shed/ocr-camera-go/pkg/models"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	frameJPEGQuality = 80
)

// Options carries the handler's dependencies and limits.
type Options struct {
	Camera    service.CameraService
	Captures  service.CaptureService
	Documents service.DocumentService
	// Metrics serves the Prometheus exposition. Not mounted when nil.
	Metrics http.Handler

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// EnableDrain allows the manual drain endpoint. While a background
	// drainer consumes the queue it must stay off and the endpoint answers
	// 409 Conflict.
	EnableDrain bool
}

type handler struct {
	opts Options
}

func NewHandler(opts Options) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(opts.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{opts: opts}

	r.GET("/health", h.healthCheck)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api")
	api.GET("/status", h.status)
	api.POST("/camera/start", h.startCamera)
	api.POST("/camera/stop", h.stopCamera)
	api.GET("/frame", h.currentFrame)

	api.GET("/captures", h.listCaptures)
	api.GET("/captures/:id", h.getCapture)
	api.GET("/captures/:id/code-blocks", h.listCodeBlocks)
	api.GET("/captures/:id/artifact", h.getArtifact)
	api.POST("/captures/drain", h.drainCaptures)

	api.POST("/documents/analyze", h.analyzeDocument)

	return r
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "available",
		"camera_running": h.opts.Camera.Status().Running,
		"time":           time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) status(c *gin.Context) {
	st := h.opts.Camera.Status()
	if st.Running {
		st.Message = "Camera is running"
	} else {
		st.Message = "Camera is stopped"
	}
	c.JSON(http.StatusOK, st)
}

func (h *handler) startCamera(c *gin.Context) {
	logger.WithFields(logrus.Fields{
		"path": c.Request.URL.Path,
		"ip":   c.ClientIP(),
	}).Info("Camera start requested")

	// The pipeline outlives the request, so it is not bound to its context.
	resp, err := h.opts.Camera.Start(context.Background())
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to start camera", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) stopCamera(c *gin.Context) {
	resp, err := h.opts.Camera.Stop(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to stop camera", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) drainCaptures(c *gin.Context) {
	if !h.opts.EnableDrain {
		err := apperrors.NewConflictError("captures are consumed by the background drainer", nil)
		respondError(c, apperrors.GetStatusCode(err), "manual drain disabled", err)
		return
	}
	c.JSON(http.StatusOK, h.opts.Camera.DrainCaptures())
}

func (h *handler) currentFrame(c *gin.Context) {
	maxWidth := 0
	if raw := c.Query("max_width"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w < 1 {
			respondError(c, http.StatusBadRequest, "invalid max_width",
				apperrors.NewValidationError("max_width must be a positive integer", err))
			return
		}
		maxWidth = w
	}

	frame, err := h.opts.Camera.CurrentFrame()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to render frame",
			apperrors.NewProcessingError("enhance current frame", err))
		return
	}
	if frame == nil {
		c.Status(http.StatusNoContent)
		return
	}

	if maxWidth > 0 && frame.Bounds().Dx() > maxWidth {
		frame = imaging.Resize(frame, maxWidth, 0, imaging.Lanczos)
	}

	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	c.Header("Content-Type", "image/jpeg")
	if err := imaging.Encode(c.Writer, frame, imaging.JPEG, imaging.JPEGQuality(frameJPEGQuality)); err != nil {
		logger.WithError(err).Warn("Failed to write frame")
	}
}

func (h *handler) listCaptures(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid limit",
				apperrors.NewValidationError("limit must be an integer", err))
			return
		}
		limit = n
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	records, err := h.opts.Captures.ListCaptures(ctx, limit)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list captures", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "captures": records})
}

func (h *handler) getCapture(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	record, err := h.opts.Captures.GetCapture(ctx, c.Param("id"))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to load capture", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *handler) listCodeBlocks(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	blocks, err := h.opts.Captures.ListCodeBlocks(ctx, c.Param("id"))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list code blocks", err)
		return
	}
	if blocks == nil {
		blocks = []models.CodeBlock{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(blocks), "code_blocks": blocks})
}

func (h *handler) getArtifact(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	rc, err := h.opts.Captures.OpenArtifact(ctx, c.Param("id"))
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to open artifact", err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.WithError(err).WithField("capture_id", c.Param("id")).Warn("Failed to stream artifact")
	}
}

func (h *handler) analyzeDocument(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := h.requestContext(c)
	defer cancel()

	// Log request start
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing document analysis request")

	var req models.DocumentAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"ip": c.ClientIP(),
		}).Error("Invalid request format")
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	result, err := h.opts.Documents.Analyze(ctx, req.URL, req.Languages)
	if err != nil {
		respondError(c, determineStatusCode(err), "document analysis failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"url":                req.URL,
		"content_type":       result.OCR.ContentType,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Document analysis request completed")

	c.JSON(http.StatusOK, result)
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.opts.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
		entry.Warn("Request rejected")
	} else {
		entry.Error("Request failed")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
