// version/version.go
package version

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/dalemusser/jobboard/httputil"
	"github.com/go-chi/chi/v5"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/jobboard/pantry/version.Version=1.0.0"
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// driverModules are the database driver modules reported in Info.Drivers.
var driverModules = map[string]string{
	"go.mongodb.org/mongo-driver":   "mongo",
	"github.com/jackc/pgx/v5":       "postgres",
	"github.com/go-sql-driver/mysql": "mysql",
	"github.com/mattn/go-sqlite3":   "sqlite",
	"github.com/redis/go-redis/v9":  "redis",
}

// Info is the build description served at /version.
type Info struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	BuildTime string            `json:"build_time"`
	GoVersion string            `json:"go_version"`
	Platform  string            `json:"platform"`
	Drivers   map[string]string `json:"drivers,omitempty"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build info. Commit and build time fall back to the VCS
// stamps embedded by the go tool when ldflags did not set them.
func Get() Info {
	once.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    Commit,
			BuildTime: BuildTime,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			fromBuildInfo(&info, bi)
		}
		if info.Commit == "" {
			info.Commit = "unknown"
		}
		if info.BuildTime == "" {
			info.BuildTime = "unknown"
		}
	})
	return info
}

func fromBuildInfo(in *Info, bi *debug.BuildInfo) {
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if in.Commit == "" {
				in.Commit = s.Value
			}
		case "vcs.time":
			if in.BuildTime == "" {
				in.BuildTime = s.Value
			}
		}
	}
	for _, dep := range bi.Deps {
		name, ok := driverModules[dep.Path]
		if !ok {
			continue
		}
		if in.Drivers == nil {
			in.Drivers = make(map[string]string)
		}
		v := dep.Version
		if dep.Replace != nil {
			v = dep.Replace.Version
		}
		in.Drivers[name] = v
	}
}

// String returns "1.2.3 (abc1234)" or just the version when no commit is known.
func String() string {
	i := Get()
	if i.Commit == "unknown" {
		return i.Version
	}
	c := i.Commit
	if len(c) > 7 && !strings.ContainsAny(c, "-.") {
		c = c[:7]
	}
	return i.Version + " (" + c + ")"
}

// Mount serves Info as JSON at /version.
func Mount(r chi.Router) {
	r.Method(http.MethodGet, "/version", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Get())
	}))
}
