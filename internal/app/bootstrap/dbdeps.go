package bootstrap

import (
	"context"

	"github.com/dalemusser/jobboard/pantry/db/mongo"
	"github.com/dalemusser/jobboard/pantry/dbconn"
	"github.com/dalemusser/jobboard/pantry/health"
)

// DBDeps holds the connection managers for the service. Conn is the
// primary document store behind /api; Aux holds the optional SQL and
// cache connections that are enabled by config.
type DBDeps struct {
	Conn     *dbconn.Manager[*mongo.Client]
	Database string
	Aux      []NamedConn
}

// NamedConn is the type-erased view of one manager used for health,
// diagnostics, warm-up and shutdown.
type NamedConn struct {
	Name  string
	Check health.Check
	State func() dbconn.State
	Live  func() bool
	Warm  func(ctx context.Context) error
	Close func(ctx context.Context) error
}

func named[H dbconn.Handle](name string, m *dbconn.Manager[H]) NamedConn {
	return NamedConn{
		Name:  name,
		Check: m.HealthCheck(),
		State: m.State,
		Live:  m.Live,
		Warm: func(ctx context.Context) error {
			_, err := m.Get(ctx)
			return err
		},
		Close: m.Close,
	}
}

// All returns the primary connection followed by the auxiliary ones.
func (d DBDeps) All() []NamedConn {
	conns := make([]NamedConn, 0, 1+len(d.Aux))
	if d.Conn != nil {
		conns = append(conns, named("mongo", d.Conn))
	}
	return append(conns, d.Aux...)
}

// Checks returns one health check per connection, keyed by name.
func (d DBDeps) Checks() map[string]health.Check {
	checks := make(map[string]health.Check)
	for _, c := range d.All() {
		checks[c.Name] = c.Check
	}
	return checks
}
