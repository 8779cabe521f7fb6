package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsStatusCodes(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantCode int
	}{
		{"validation", NewValidationError("bad", cause), ErrorTypeValidation, http.StatusBadRequest},
		{"network", NewNetworkError("net", cause), ErrorTypeNetwork, http.StatusBadGateway},
		{"timeout", NewTimeoutError("slow", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"not found", NewNotFoundError("missing", nil), ErrorTypeNotFound, http.StatusNotFound},
		{"camera", NewCameraError("no device", cause), ErrorTypeCamera, http.StatusServiceUnavailable},
		{"oracle", NewOracleError("ocr", cause), ErrorTypeOracle, http.StatusBadGateway},
		{"persistence", NewPersistenceError("db", cause), ErrorTypePersistence, http.StatusInternalServerError},
		{"conflict", NewConflictError("busy", nil), ErrorTypeConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, tt.err.Type)
			}
			if GetStatusCode(tt.err) != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, GetStatusCode(tt.err))
			}
		})
	}
}

func TestIsTypeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start pipeline: %w", NewCameraError("camera 0 unavailable", nil))

	if !IsType(err, ErrorTypeCamera) {
		t.Error("Expected wrapped camera error to be detected")
	}
	if IsType(err, ErrorTypeOracle) {
		t.Error("Expected camera error not to match oracle type")
	}
	if GetStatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", GetStatusCode(err))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("save artifact", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
	if GetStatusCode(errors.New("plain")) != http.StatusInternalServerError {
		t.Error("Expected plain errors to map to 500")
	}
}
