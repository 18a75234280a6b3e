package dbconn

import (
	"context"
	"time"
)

// Default option values.
const (
	DefaultMaxAttempts    = 4
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultAttemptTimeout = 10 * time.Second
)

// Handle is a connection the manager can cache. Live must report the
// handle's current state from memory; it must not do network I/O.
type Handle interface {
	Live() bool
}

// Closer is implemented by handles that hold resources worth releasing
// when the manager discards them.
type Closer interface {
	Close(ctx context.Context) error
}

// DialFunc opens one connection. ctx carries the per-attempt timeout.
type DialFunc[H Handle] func(ctx context.Context, uri string) (H, error)

// Options are the per-call settings of Acquire.
type Options struct {
	// MaxAttempts is the number of connect attempts before giving up.
	MaxAttempts int

	// BaseDelay is the backoff base: attempt k (k >= 2) waits
	// BaseDelay * 2^(k-2) before dialing. Zero disables waiting.
	BaseDelay time.Duration

	// AttemptTimeout bounds a single dial.
	AttemptTimeout time.Duration

	// BoundedWait, when positive, caps how long Acquire blocks its caller.
	// The connect sequence is not affected.
	BoundedWait time.Duration
}

// DefaultOptions returns the defaults: 4 attempts, 500ms base delay, 10s
// per attempt, no bounded wait.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

func (o Options) normalize() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = 0
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.BoundedWait < 0 {
		o.BoundedWait = 0
	}
	return o
}

// Observer receives connection events, typically to feed metrics.
type Observer interface {
	ObserveAttempt(ok bool, d time.Duration)
	ObservePhase(phase string)
	ObserveAcquire(outcome string)
}

// Acquire outcomes passed to Observer.ObserveAcquire.
const (
	OutcomeReady     = "ready"
	OutcomePending   = "pending"
	OutcomeExhausted = "exhausted"
	OutcomeConfig    = "config_error"
	OutcomeCanceled  = "canceled"
)

type nopObserver struct{}

func (nopObserver) ObserveAttempt(bool, time.Duration) {}
func (nopObserver) ObservePhase(string)                {}
func (nopObserver) ObserveAcquire(string)              {}

// Config holds the construction-time settings of a Manager.
type Config struct {
	// URI is the connection string used by Get and Status.
	URI string

	// Options are used by Get and by the Gate middleware.
	Options Options

	// Validate optionally checks URI syntax before any dial. A rejected
	// URI is reported as a *ConfigError.
	Validate func(uri string) error

	// Observer receives attempt, phase and acquire events. Nil disables.
	Observer Observer
}
