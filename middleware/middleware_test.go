package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/jobboard/config"
	"github.com/dalemusser/jobboard/pantry/dbconn"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORSFromConfig_Disabled(t *testing.T) {
	for _, cfg := range []*config.CoreConfig{nil, {}} {
		h := CORSFromConfig(cfg)(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Origin", "https://jobs.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q with CORS disabled", got)
		}
	}
}

func TestCORSFromConfig_Enabled(t *testing.T) {
	cfg := &config.CoreConfig{CORS: config.CORSConfig{
		EnableCORS:         true,
		CORSAllowedOrigins: []string{"https://jobs.example"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSExposedHeaders: []string{"Link"},
	}}
	h := CORSFromConfig(cfg)(okHandler)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://jobs.example", "https://jobs.example"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
			if tt.want == "" {
				return
			}
			exposed := rec.Header().Get("Access-Control-Expose-Headers")
			for _, hdr := range []string{dbconn.DegradedHeader, "Retry-After", "Link"} {
				if !strings.Contains(exposed, hdr) {
					t.Errorf("Expose-Headers %q missing %s", exposed, hdr)
				}
			}
		})
	}
}

func TestLimitBodySize(t *testing.T) {
	var readErr error
	h := LimitBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	tests := []struct {
		name       string
		body       string
		chunked    bool
		wantStatus int
		wantErr    bool
	}{
		{"under limit", "short", false, http.StatusOK, false},
		{"declared too large", "this body is too long", false, http.StatusRequestEntityTooLarge, false},
		{"streamed too large", "this body is too long", true, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readErr = nil
			req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var mbe *http.MaxBytesError
			if got := errors.As(readErr, &mbe); got != tt.wantErr {
				t.Errorf("MaxBytesError = %v, want %v (err %v)", got, tt.wantErr, readErr)
			}
		})
	}
}

func TestLimitBodySize_Disabled(t *testing.T) {
	h := LimitBodySize(0)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 1<<16))))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestJSONStatusHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		code    string
	}{
		{"not found", NotFoundHandler(nil), http.StatusNotFound, `"error":"not_found"`},
		{"method not allowed", MethodNotAllowedHandler(nil), http.StatusMethodNotAllowed, `"error":"method_not_allowed"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if !strings.Contains(rec.Body.String(), tt.code) {
				t.Errorf("body = %q, want %s", rec.Body.String(), tt.code)
			}
		})
	}
}
