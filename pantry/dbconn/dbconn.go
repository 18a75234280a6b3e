package dbconn

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/jobboard/pantry/retry"
	"go.uber.org/zap"
)

// Phase is the lifecycle position of a Manager.
type Phase int

const (
	Idle Phase = iota
	Connecting
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Phases lists every phase, in declaration order.
var Phases = []Phase{Idle, Connecting, Ready, Failed}

// closeTimeout bounds the Close call on a discarded handle.
const closeTimeout = 5 * time.Second

// sequence is one run of the connect/backoff loop. All callers that attach
// while it is in flight share its outcome.
type sequence[H Handle] struct {
	done chan struct{}

	// written before done is closed
	handle H
	err    error

	// guarded by Manager.mu
	attempts int
	waiters  int
}

// Manager owns a single cached connection and the state machine that
// creates, shares and repairs it. The zero value is not usable; call New.
//
// At most one connect sequence runs at a time. The mutex is held only
// for state transitions, never across a dial or a backoff wait.
type Manager[H Handle] struct {
	dial   DialFunc[H]
	cfg    Config
	logger *zap.Logger
	obs    Observer

	// wait replaces the backoff sleep; nil uses a timer.
	wait func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	phase     Phase
	handle    H
	inflight  *sequence[H]
	last      *sequence[H]
	lastErr   error
	sequences uint64
}

// New returns a Manager in the Idle phase. Nothing is dialed until the
// first Acquire. A zero cfg.Options is replaced by DefaultOptions.
func New[H Handle](dial DialFunc[H], cfg Config, logger *zap.Logger) *Manager[H] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}
	cfg.Options = cfg.Options.normalize()
	cfg.URI = strings.TrimSpace(cfg.URI)

	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	m := &Manager[H]{
		dial:   dial,
		cfg:    cfg,
		logger: logger.Named("dbconn"),
		obs:    obs,
	}
	obs.ObservePhase(Idle.String())
	return m
}

// Options returns the normalized options used by Get.
func (m *Manager[H]) Options() Options {
	return m.cfg.Options
}

// Get acquires a connection using the URI and options given to New.
func (m *Manager[H]) Get(ctx context.Context) (H, error) {
	return m.Acquire(ctx, m.cfg.URI, m.cfg.Options)
}

// Acquire returns a ready connection for uri.
//
// A cached handle that still reports live is returned without any I/O. A
// cached handle that went dead is discarded and a new connect sequence is
// started. If a sequence is already running the caller attaches to it
// instead of starting another one.
//
// The error is one of:
//   - a *ConfigError (errors.Is ErrConfiguration) when uri is missing or
//     rejected by Config.Validate; nothing changes state;
//   - an *ExhaustedError (errors.Is ErrExhausted) when every attempt failed;
//   - ErrPending when opts.BoundedWait elapsed first;
//   - ctx.Err() when the caller gave up first.
//
// Neither ErrPending nor ctx.Err() stops the running sequence.
func (m *Manager[H]) Acquire(ctx context.Context, uri string, opts Options) (H, error) {
	var zero H

	uri = strings.TrimSpace(uri)
	if uri == "" {
		m.obs.ObserveAcquire(OutcomeConfig)
		return zero, &ConfigError{Reason: "no connection URI configured"}
	}
	if m.cfg.Validate != nil {
		if err := m.cfg.Validate(uri); err != nil {
			m.obs.ObserveAcquire(OutcomeConfig)
			return zero, &ConfigError{Reason: "invalid connection URI", Err: err}
		}
	}
	opts = opts.normalize()

	m.mu.Lock()
	if m.phase == Ready {
		if IsLive(m.handle) {
			h := m.handle
			m.mu.Unlock()
			m.obs.ObserveAcquire(OutcomeReady)
			return h, nil
		}
		m.discardLocked()
	}
	seq := m.inflight
	if seq == nil {
		seq = m.startLocked(ctx, uri, opts)
	}
	seq.waiters++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		seq.waiters--
		m.mu.Unlock()
	}()

	return m.await(ctx, seq, opts.BoundedWait)
}

func (m *Manager[H]) await(ctx context.Context, seq *sequence[H], bounded time.Duration) (H, error) {
	var zero H

	var deadline <-chan time.Time
	if bounded > 0 {
		t := time.NewTimer(bounded)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case <-seq.done:
		if seq.err != nil {
			m.obs.ObserveAcquire(OutcomeExhausted)
			return zero, seq.err
		}
		m.obs.ObserveAcquire(OutcomeReady)
		return seq.handle, nil
	case <-deadline:
		m.obs.ObserveAcquire(OutcomePending)
		return zero, ErrPending
	case <-ctx.Done():
		m.obs.ObserveAcquire(OutcomeCanceled)
		return zero, ctx.Err()
	}
}

// discardLocked drops a cached handle that stopped reporting live.
func (m *Manager[H]) discardLocked() {
	var zero H
	old := m.handle
	m.handle = zero
	m.setPhaseLocked(Idle)

	m.logger.Warn("cached database handle is no longer live; reconnecting")

	if c, ok := any(old).(Closer); ok {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := c.Close(ctx); err != nil {
				m.logger.Debug("closing dead database handle failed", zap.Error(err))
			}
		}()
	}
}

// startLocked moves the manager to Connecting and launches a sequence.
// The sequence keeps the caller's context values but not its cancellation.
func (m *Manager[H]) startLocked(ctx context.Context, uri string, opts Options) *sequence[H] {
	seq := &sequence[H]{done: make(chan struct{})}
	m.inflight = seq
	m.lastErr = nil
	m.sequences++
	m.setPhaseLocked(Connecting)

	go m.run(context.WithoutCancel(ctx), seq, m.sequences, uri, opts)
	return seq
}

// run performs the connect attempts and publishes the outcome.
func (m *Manager[H]) run(ctx context.Context, seq *sequence[H], n uint64, uri string, opts Options) {
	start := time.Now()
	log := m.logger.With(zap.Uint64("sequence", n))
	log.Info("connecting to database",
		zap.Int("max_attempts", opts.MaxAttempts),
		zap.Duration("base_delay", opts.BaseDelay),
		zap.Duration("attempt_timeout", opts.AttemptTimeout),
	)

	attempts := 0
	h, err := retry.DoWithResult(ctx, retry.Config{
		MaxAttempts:  opts.MaxAttempts,
		InitialDelay: opts.BaseDelay,
		Multiplier:   2,
		Wait:         m.wait,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("database connect attempt failed; retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", opts.MaxAttempts),
				zap.Duration("next_delay", delay),
				zap.Error(&TransientConnectError{Attempt: attempt, Err: err}),
			)
		},
	}, func(ctx context.Context) (H, error) {
		attempts++
		m.mu.Lock()
		seq.attempts = attempts
		m.mu.Unlock()

		actx, cancel := context.WithTimeout(ctx, opts.AttemptTimeout)
		defer cancel()

		t0 := time.Now()
		h, err := m.safeDial(actx, uri)
		m.obs.ObserveAttempt(err == nil, time.Since(t0))
		return h, err
	})

	m.mu.Lock()
	m.inflight = nil
	m.last = seq
	if err == nil {
		m.handle = h
		seq.handle = h
		m.setPhaseLocked(Ready)
	} else {
		m.lastErr = err
		seq.err = &ExhaustedError{Attempts: attempts, LastErr: err}
		m.setPhaseLocked(Failed)
	}
	close(seq.done)
	m.mu.Unlock()

	if err != nil {
		log.Error("database connection failed; giving up until next acquire",
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	log.Info("database connection ready",
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// safeDial turns a panicking dialer, or one that reports success with a
// nil handle, into a failed attempt.
func (m *Manager[H]) safeDial(ctx context.Context, uri string) (h H, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero H
			h, err = zero, fmt.Errorf("dbconn: dial panicked: %v", r)
		}
	}()
	h, err = m.dial(ctx, uri)
	if err == nil && isNil(h) {
		return h, errors.New("dbconn: dialer returned a nil handle")
	}
	return h, err
}

func (m *Manager[H]) setPhaseLocked(p Phase) {
	m.phase = p
	m.obs.ObservePhase(p.String())
}

// IsLive reports whether h currently reports itself live. It never dials.
// A nil handle, or one whose Live panics, is not live.
func IsLive[H Handle](h H) (live bool) {
	if isNil(h) {
		return false
	}
	defer func() {
		if recover() != nil {
			live = false
		}
	}()
	return h.Live()
}

// isNil reports whether h is nil, including a typed nil pointer held in
// an interface.
func isNil(h any) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Live reports whether a cached handle exists and reports live. It never
// dials and never changes state.
func (m *Manager[H]) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == Ready && IsLive(m.handle)
}

// State is a point-in-time snapshot of a Manager.
type State struct {
	Phase Phase

	// Sequences counts connect sequences started since New.
	Sequences uint64

	// Attempts made by the running sequence, or by the last finished one.
	Attempts int

	// Waiters attached to the running sequence.
	Waiters int

	// LastError is the final attempt's error; set only in the Failed phase.
	LastError error
}

// State returns a snapshot of the manager.
func (m *Manager[H]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Phase:     m.phase,
		Sequences: m.sequences,
	}
	switch {
	case m.inflight != nil:
		s.Attempts = m.inflight.attempts
		s.Waiters = m.inflight.waiters
	case m.last != nil:
		s.Attempts = m.last.attempts
	}
	if m.phase == Failed {
		s.LastError = m.lastErr
	}
	return s
}

// Close releases the cached handle, if any, and returns the manager to
// Idle. A sequence that is still running is left alone and publishes its
// result normally.
func (m *Manager[H]) Close(ctx context.Context) error {
	var zero H

	m.mu.Lock()
	if m.phase != Ready {
		m.mu.Unlock()
		return nil
	}
	old := m.handle
	m.handle = zero
	m.setPhaseLocked(Idle)
	m.mu.Unlock()

	if c, ok := any(old).(Closer); ok {
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("dbconn: close: %w", err)
		}
	}
	m.logger.Info("database connection closed")
	return nil
}
