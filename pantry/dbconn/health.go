package dbconn

import (
	"context"
	"fmt"

	"github.com/dalemusser/jobboard/pantry/health"
)

// Report is the read-only status surface consumed by health endpoints.
type Report struct {
	Status string `json:"status"`
	Live   bool   `json:"live"`
}

// Status derives a Report from the cached handle without dialing:
// "error" when no valid URI is configured, "ok" when the cached handle
// reports live, "degraded" otherwise.
func (m *Manager[H]) Status() Report {
	if err := m.configErr(); err != nil {
		return Report{Status: health.StatusError}
	}
	if m.Live() {
		return Report{Status: health.StatusOK, Live: true}
	}
	return Report{Status: health.StatusDegraded}
}

// HealthCheck adapts Status to a health.Check. A degraded manager is
// reported with health.Degraded so the endpoint stays 200.
func (m *Manager[H]) HealthCheck() health.Check {
	return func(ctx context.Context) error {
		if err := m.configErr(); err != nil {
			return err
		}
		if m.Live() {
			return nil
		}
		return health.Degraded(fmt.Errorf("database %s", m.State().Phase))
	}
}

func (m *Manager[H]) configErr() error {
	if m.cfg.URI == "" {
		return &ConfigError{Reason: "no connection URI configured"}
	}
	if m.cfg.Validate != nil {
		if err := m.cfg.Validate(m.cfg.URI); err != nil {
			return &ConfigError{Reason: "invalid connection URI", Err: err}
		}
	}
	return nil
}
