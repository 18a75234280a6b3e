package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/jobboard/pantry/dbconn"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDBObserver(t *testing.T) {
	d := NewDB("test_observer")

	d.ObserveAttempt(false, 20*time.Millisecond)
	d.ObserveAttempt(false, 40*time.Millisecond)
	d.ObserveAttempt(true, 10*time.Millisecond)

	if got := testutil.ToFloat64(dbAttempts.WithLabelValues("test_observer", "error")); got != 2 {
		t.Errorf("error attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(dbAttempts.WithLabelValues("test_observer", "ok")); got != 1 {
		t.Errorf("ok attempts = %v, want 1", got)
	}

	d.ObservePhase("connecting")
	d.ObservePhase("ready")
	tests := map[string]float64{"idle": 0, "connecting": 0, "ready": 1, "failed": 0}
	for phase, want := range tests {
		if got := testutil.ToFloat64(dbPhase.WithLabelValues("test_observer", phase)); got != want {
			t.Errorf("phase %s = %v, want %v", phase, got, want)
		}
	}

	d.ObserveAcquire("pending")
	d.ObserveAcquire("pending")
	if got := testutil.ToFloat64(dbAcquire.WithLabelValues("test_observer", "pending")); got != 2 {
		t.Errorf("pending acquires = %v, want 2", got)
	}
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(dbconn.DegradedHeader, "true")
		w.WriteHeader(http.StatusAccepted)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	}

	got := testutil.CollectAndCount(reqDuration, "http_request_duration_seconds")
	if got != 1 {
		t.Errorf("series = %d, want 1 (one route pattern)", got)
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "h"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	RegisterDefault(nil)
	NewDB("test_handler").ObservePhase("idle")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `db_connection_phase{conn="test_handler",phase="idle"} 1`) {
		t.Error("db_connection_phase not exposed")
	}
}
