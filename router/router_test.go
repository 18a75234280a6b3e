package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/jobboard/config"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	r := New(&config.CoreConfig{MaxRequestBodyBytes: 1 << 10}, zap.NewNop())

	var reqID string
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		reqID = chimw.GetReqID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/ping", http.StatusNoContent},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodPost, "/ping", http.StatusMethodNotAllowed},
		{http.MethodGet, "/panic", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if reqID == "" {
		t.Error("request ID middleware not installed")
	}
}
