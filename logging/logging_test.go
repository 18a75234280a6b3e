package logging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/jobboard/pantry/dbconn"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestIsValidLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", " warn ", "Error"} {
		if !IsValidLogLevel(lvl) {
			t.Errorf("IsValidLogLevel(%q) = false", lvl)
		}
	}
	for _, lvl := range []string{"", "verbose", "trace"} {
		if IsValidLogLevel(lvl) {
			t.Errorf("IsValidLogLevel(%q) = true", lvl)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   zapcore.Level
		wantOK bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{" Warn ", zapcore.WarnLevel, true},
		{"FATAL", zapcore.FatalLevel, true},
		{"", zapcore.InfoLevel, false},
		{"trace", zapcore.InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		level, env string
		want       zapcore.Level
	}{
		{"debug", "dev", zapcore.DebugLevel},
		{"WARN", "prod", zapcore.WarnLevel},
		{"nonsense", "prod", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.env, func(t *testing.T) {
			logger, err := New(Options{Level: tt.level, Env: tt.env, Service: "jobboard", Version: "test"})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !logger.Core().Enabled(tt.want) || (tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1)) {
				t.Errorf("level mismatch, want %v", tt.want)
			}
		})
	}
}

func TestForConn(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ForConn(zap.New(core), "mongo").Info("database warm")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "db.mongo" {
		t.Errorf("logger name = %q, want db.mongo", e.LoggerName)
	}
	if got := e.ContextMap()["conn"]; got != "mongo" {
		t.Errorf("conn field = %v, want mongo", got)
	}

	ForConn(nil, "redis").Info("discarded")
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		degraded     bool
		wantLevel    zapcore.Level
		wantDegraded bool
	}{
		{"ok", http.StatusOK, false, zapcore.InfoLevel, false},
		{"degraded", http.StatusOK, true, zapcore.InfoLevel, true},
		{"unavailable", http.StatusServiceUnavailable, false, zapcore.WarnLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.degraded {
					w.Header().Set(dbconn.DegradedHeader, "true")
				}
				w.WriteHeader(tt.status)
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("entries = %d, want 1", len(entries))
			}
			e := entries[0]
			if e.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", e.Level, tt.wantLevel)
			}
			fields := e.ContextMap()
			if fields["db_degraded"] != tt.wantDegraded {
				t.Errorf("db_degraded = %v, want %v", fields["db_degraded"], tt.wantDegraded)
			}
			if fields["status"] != int64(tt.status) {
				t.Errorf("status = %v, want %d", fields["status"], tt.status)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Recoverer(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("panic not logged")
	}
}

func TestRecoverer_AfterHeaders(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Recoverer(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want the already-sent 202", rec.Code)
	}
	if logs.FilterMessage("panic occurred after headers written; response may be incomplete").Len() != 1 {
		t.Error("late panic warning not logged")
	}
}
