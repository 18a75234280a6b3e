// db/liveness/liveness.go

// Package liveness keeps an in-memory liveness flag for connections whose
// drivers do not publish topology events. A background goroutine pings on
// an interval; Live only reads the flag.
package liveness

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Options configure a Probe. Zero values use the defaults.
type Options struct {
	// Interval between pings. Default: 15s.
	Interval time.Duration

	// Timeout bounds each ping. Default: 2s.
	Timeout time.Duration

	// Failures is the number of consecutive failed pings before the
	// connection is reported dead. Default: 2.
	Failures int
}

const (
	defaultInterval = 15 * time.Second
	defaultTimeout  = 2 * time.Second
	defaultFailures = 2
)

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Failures <= 0 {
		o.Failures = defaultFailures
	}
	return o
}

// Probe tracks whether a connection answered its recent pings.
type Probe struct {
	live atomic.Bool
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Start returns a Probe that begins live (the caller has just connected)
// and pings in the background until Stop.
func Start(ping func(ctx context.Context) error, opts Options) *Probe {
	opts = opts.withDefaults()
	p := &Probe{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	p.live.Store(true)
	go p.loop(ping, opts)
	return p
}

func (p *Probe) loop(ping func(ctx context.Context) error, opts Options) {
	defer close(p.done)

	t := time.NewTicker(opts.Interval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		err := ping(ctx)
		cancel()

		if err == nil {
			failures = 0
			p.live.Store(true)
			continue
		}
		failures++
		if failures >= opts.Failures {
			p.live.Store(false)
		}
	}
}

// Live reports the last known state. A nil Probe is not live.
func (p *Probe) Live() bool {
	return p != nil && p.live.Load()
}

// Stop ends the background pings and marks the probe dead. It is safe to
// call more than once.
func (p *Probe) Stop() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		close(p.stop)
		<-p.done
		p.live.Store(false)
	})
}
