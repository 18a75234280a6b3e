package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func serve(t *testing.T, h http.Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHandler(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	degraded := func(ctx context.Context) error { return Degraded(errors.New("reconnecting")) }
	broken := func(ctx context.Context) error { return errors.New("no uri") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantCode   int
		wantStatus string
		wantLive   bool
	}{
		{"no checks", nil, http.StatusOK, StatusOK, true},
		{"all ok", map[string]Check{"db": ok, "nil": nil}, http.StatusOK, StatusOK, true},
		{"degraded", map[string]Check{"db": degraded, "other": ok}, http.StatusOK, StatusDegraded, false},
		{"error wins over degraded", map[string]Check{"db": degraded, "cfg": broken}, http.StatusServiceUnavailable, StatusError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := serve(t, Handler(tt.checks, zap.NewNop()))
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Live != tt.wantLive {
				t.Errorf("live = %v, want %v", resp.Live, tt.wantLive)
			}
		})
	}
}

func TestHandler_CheckMessages(t *testing.T) {
	checks := map[string]Check{
		"db": func(ctx context.Context) error { return Degraded(errors.New("connecting")) },
	}
	_, resp := serve(t, Handler(checks, nil))
	if got := resp.Checks["db"]; got != "degraded: connecting" {
		t.Errorf("checks[db] = %q, want %q", got, "degraded: connecting")
	}
}

func TestDegraded(t *testing.T) {
	base := errors.New("down")
	err := Degraded(base)
	if !IsDegraded(err) {
		t.Error("IsDegraded = false, want true")
	}
	if !errors.Is(err, base) {
		t.Error("Degraded should unwrap to the original error")
	}
	if IsDegraded(base) {
		t.Error("plain error reported as degraded")
	}
}

func TestMountAt(t *testing.T) {
	r := chi.NewRouter()
	MountAt(r, "/ready", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}
