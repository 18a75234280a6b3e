package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/jobboard/config"
	"go.uber.org/zap"
)

func TestRedirectHost(t *testing.T) {
	tests := []struct {
		host   string
		port   int
		want   string
		wantOK bool
	}{
		{"jobs.example", 443, "jobs.example", true},
		{"jobs.example:8080", 443, "jobs.example", true},
		{"jobs.example:8080", 8443, "jobs.example:8443", true},
		{"[::1]:8080", 443, "[::1]", true},
		{"[fe80::1%eth0]:80", 443, "[fe80::1%eth0]", true},
		{"", 443, "", false},
		{"jobs.example:0", 443, "", false},
		{"jobs.example:99999", 443, "", false},
		{"evil.example\r\nSet-Cookie: x", 443, "", false},
		{"http://evil.example", 443, "", false},
		{"/evil", 443, "", false},
		{"[zz::1]:80", 443, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, ok := redirectHost(tt.host, tt.port)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("redirectHost(%q, %d) = %q, %v; want %q, %v", tt.host, tt.port, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRedirectHandler(t *testing.T) {
	h := redirectHandler(443)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?page=2", nil)
	req.Host = "jobs.example:80"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://jobs.example/api/jobs?page=2" {
		t.Errorf("Location = %q", loc)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "bad host"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad host status = %d, want 400", rec.Code)
	}
}

func TestValidateTLSFiles(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(cert, []byte("cert"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(key, []byte("key"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := validateTLSFiles(cert, key); err != nil {
		t.Errorf("valid files: %v", err)
	}
	if err := validateTLSFiles(filepath.Join(dir, "missing.pem"), key); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("missing cert: %v", err)
	}
	if err := validateTLSFiles(cert, dir); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("directory key: %v", err)
	}

	if runtime.GOOS == "windows" {
		return
	}
	if err := os.Chmod(key, 0o644); err != nil {
		t.Fatal(err)
	}
	err := validateTLSFiles(cert, key)
	if _, ok := err.(*permissionError); !ok {
		t.Errorf("world-readable key: err = %v, want *permissionError", err)
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	cfg := &config.CoreConfig{HTTP: config.HTTPConfig{ShutdownTimeout: 2 * time.Second}}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	logger := zap.NewNop()
	srv := newServer(cfg, handler, logger)

	// Port 0 keeps the test off fixed ports.
	cfg.HTTP.HTTPPort = 0
	ln, err := listen(cfg, logger)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, nil, cfg, logger) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestListenAndServeWithContext_NilArgs(t *testing.T) {
	h := http.NotFoundHandler()
	if err := ListenAndServeWithContext(context.Background(), nil, h, nil); err == nil {
		t.Error("nil cfg accepted")
	}
	if err := ListenAndServeWithContext(context.Background(), &config.CoreConfig{}, nil, nil); err == nil {
		t.Error("nil handler accepted")
	}
}
