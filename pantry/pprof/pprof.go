// pprof/pprof.go
package pprof

import (
	stdpprof "net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// Profiles are the named runtime profiles served by Mount.
var Profiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// Mount serves the runtime profiles under /debug/pprof when enabled.
// Nothing guards the routes, so callers enable it in dev only.
func Mount(r chi.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Get("/", stdpprof.Index)
		r.Get("/cmdline", stdpprof.Cmdline)
		r.Get("/profile", stdpprof.Profile)
		r.Get("/trace", stdpprof.Trace)
		r.HandleFunc("/symbol", stdpprof.Symbol)
		for _, name := range Profiles {
			r.Handle("/"+name, stdpprof.Handler(name))
		}
	})
}
