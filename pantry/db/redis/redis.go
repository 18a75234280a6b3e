// db/redis/redis.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/jobboard/pantry/db/liveness"
	"github.com/dalemusser/jobboard/pantry/dbconn"
	"github.com/redis/go-redis/v9"
)

// Options tune the client built by Connect. Zero values keep the settings
// from the URL or go-redis defaults.
type Options struct {
	PoolSize     int
	MinIdleConns int

	// Probe controls the background ping that drives Live.
	Probe liveness.Options
}

// Client is a Redis client usable as a dbconn handle.
type Client struct {
	client *redis.Client
	probe  *liveness.Probe
}

// Connect opens a client for url and pings it before returning. When ctx
// has a deadline it also bounds the dial timeout.
//
// URL formats:
//
//	redis://localhost:6379
//	redis://:password@localhost:6379/0
//	rediss://localhost:6379 (TLS)
func Connect(ctx context.Context, url string, opts Options) (*Client, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	if opts.PoolSize > 0 {
		ro.PoolSize = opts.PoolSize
	}
	if opts.MinIdleConns > 0 {
		ro.MinIdleConns = opts.MinIdleConns
	}
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 && (ro.DialTimeout == 0 || d < ro.DialTimeout) {
			ro.DialTimeout = d
		}
	}

	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return &Client{client: client, probe: liveness.Start(ping, opts.Probe)}, nil
}

// Dialer adapts Connect to a dbconn.DialFunc.
func Dialer(opts Options) dbconn.DialFunc[*Client] {
	return func(ctx context.Context, url string) (*Client, error) {
		return Connect(ctx, url, opts)
	}
}

// Live reports the result of the most recent background pings.
func (c *Client) Live() bool {
	return c != nil && c.probe.Live()
}

// Close stops the probe and closes the client.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	c.probe.Stop()
	return c.client.Close()
}

// Raw returns the underlying go-redis client.
func (c *Client) Raw() *redis.Client {
	return c.client
}

// ValidateURL parses url without connecting.
func ValidateURL(url string) error {
	if _, err := redis.ParseURL(url); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
