// metrics/db.go
package metrics

import (
	"time"

	"github.com/dalemusser/jobboard/pantry/dbconn"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dbAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_connect_attempts_total",
			Help: "Database connect attempts, by connection and result.",
		},
		[]string{"conn", "result"},
	)

	dbAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_connect_attempt_duration_seconds",
			Help:    "Duration of single database connect attempts.",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10},
		},
		[]string{"conn"},
	)

	dbPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connection_phase",
			Help: "1 for the current phase of each managed connection, 0 otherwise.",
		},
		[]string{"conn", "phase"},
	)

	dbAcquire = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_acquire_total",
			Help: "Connection acquisitions, by connection and outcome.",
		},
		[]string{"conn", "outcome"},
	)
)

// DB feeds a connection manager's events into the db_* collectors under
// the label conn=name.
type DB struct {
	name string
}

var _ dbconn.Observer = (*DB)(nil)

// NewDB returns an observer for the connection called name.
func NewDB(name string) *DB {
	return &DB{name: name}
}

// ObserveAttempt counts one connect attempt and records its duration.
func (d *DB) ObserveAttempt(ok bool, dur time.Duration) {
	result := "error"
	if ok {
		result = "ok"
	}
	dbAttempts.WithLabelValues(d.name, result).Inc()
	dbAttemptDuration.WithLabelValues(d.name).Observe(dur.Seconds())
}

// ObservePhase sets the gauge for phase to 1 and every other phase to 0.
func (d *DB) ObservePhase(phase string) {
	for _, p := range dbconn.Phases {
		v := 0.0
		if p.String() == phase {
			v = 1
		}
		dbPhase.WithLabelValues(d.name, p.String()).Set(v)
	}
}

// ObserveAcquire counts one acquisition by outcome.
func (d *DB) ObserveAcquire(outcome string) {
	dbAcquire.WithLabelValues(d.name, outcome).Inc()
}
