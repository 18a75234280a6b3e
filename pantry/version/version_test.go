package version

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime/debug"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		},
		Deps: []*debug.Module{
			{Path: "go.mongodb.org/mongo-driver", Version: "v1.17.6"},
			{Path: "github.com/redis/go-redis/v9", Version: "v9.0.0", Replace: &debug.Module{Version: "v9.17.2"}},
			{Path: "go.uber.org/zap", Version: "v1.27.1"},
		},
	}

	var in Info
	fromBuildInfo(&in, bi)

	if in.Commit != "0123456789abcdef" || in.BuildTime != "2026-10-01T12:00:00Z" {
		t.Errorf("vcs stamps = %q, %q", in.Commit, in.BuildTime)
	}
	want := map[string]string{"mongo": "v1.17.6", "redis": "v9.17.2"}
	if len(in.Drivers) != len(want) {
		t.Fatalf("drivers = %v, want %v", in.Drivers, want)
	}
	for k, v := range want {
		if in.Drivers[k] != v {
			t.Errorf("drivers[%s] = %q, want %q", k, in.Drivers[k], v)
		}
	}

	in = Info{Commit: "release-abc"}
	fromBuildInfo(&in, bi)
	if in.Commit != "release-abc" {
		t.Errorf("ldflags commit overwritten: %q", in.Commit)
	}
}

func TestMount(t *testing.T) {
	r := chi.NewRouter()
	Mount(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got Info
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Version != Version || got.GoVersion == "" || got.Commit == "" {
		t.Errorf("info = %+v", got)
	}
}
