// httputil/json.go
package httputil

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var jsonLogger atomic.Pointer[zap.Logger]

// SetLogger configures the logger used for JSON encoding errors.
// This should be called once during application startup.
func SetLogger(logger *zap.Logger) {
	jsonLogger.Store(logger)
}

// WriteJSON writes a JSON response with the given status code.
// If encoding fails, the error is logged (if a logger is configured via
// SetLogger) because headers and status have already been sent.
//
// Invalid status codes (outside 100-599) are clamped to 500.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		if logger := jsonLogger.Load(); logger != nil {
			typeName := "nil"
			if v != nil {
				typeName = reflect.TypeOf(v).String()
			}
			logger.Error("json encoding failed after headers sent",
				zap.String("type", typeName),
				zap.Error(err),
			)
		}
	}
}

// JSONError writes a structured JSON error with an error code and message.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// Unavailable writes a 503 JSON error with a Retry-After header rounded up
// to whole seconds (minimum 1).
func Unavailable(w http.ResponseWriter, retryAfter time.Duration, code, message string) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	JSONError(w, http.StatusServiceUnavailable, code, message)
}
