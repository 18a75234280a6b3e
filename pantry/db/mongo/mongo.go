// db/mongo/mongo.go
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/jobboard/pantry/dbconn"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/description"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Options tunes the driver client built by Connect. Zero values fall back
// to the defaults below.
type Options struct {
	AppName                string
	MinPoolSize            uint64
	MaxPoolSize            uint64
	MaxConnIdleTime        time.Duration
	ServerSelectionTimeout time.Duration
}

const (
	defaultMinPoolSize     = 2
	defaultMaxPoolSize     = 50
	defaultMaxConnIdleTime = 5 * time.Minute
)

// Client is a connected Mongo/DocumentDB client whose liveness is tracked
// from the driver's topology events, so Live never touches the network.
type Client struct {
	client *mongo.Client
	live   atomic.Bool

	mu       sync.Mutex
	reported bool // the monitor has delivered at least one event
}

// Connect opens a Mongo/DocumentDB connection using the given URI and
// performs a Ping against the primary before returning. The deadline of
// ctx bounds both steps.
//
// If Ping fails the client is disconnected before the error is returned.
func Connect(ctx context.Context, uri string, opts Options) (*Client, error) {
	c := &Client{}

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMinPoolSize(orDefault(opts.MinPoolSize, defaultMinPoolSize)).
		SetMaxPoolSize(orDefault(opts.MaxPoolSize, defaultMaxPoolSize)).
		SetMaxConnIdleTime(orDefault(opts.MaxConnIdleTime, defaultMaxConnIdleTime)).
		SetServerMonitor(c.monitor())
	if opts.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	} else if deadline, ok := ctx.Deadline(); ok {
		// Fail fast inside the caller's window instead of the driver's 30s default.
		if d := time.Until(deadline); d > 0 {
			clientOpts.SetServerSelectionTimeout(d)
		}
	}
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		discCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(discCtx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	c.client = client
	c.markPinged()
	return c, nil
}

// Dialer adapts Connect to the connection manager's dial signature.
func Dialer(opts Options) dbconn.DialFunc[*Client] {
	return func(ctx context.Context, uri string) (*Client, error) {
		return Connect(ctx, uri, opts)
	}
}

// monitor builds the driver ServerMonitor that keeps c.live in sync with
// the topology: live while at least one server has a known kind.
func (c *Client) monitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		TopologyDescriptionChanged: func(e *event.TopologyDescriptionChangedEvent) {
			c.setLive(hasKnownServer(e.NewDescription))
		},
		TopologyClosed: func(*event.TopologyClosedEvent) {
			c.setLive(false)
		},
	}
}

func (c *Client) setLive(v bool) {
	c.mu.Lock()
	c.reported = true
	c.live.Store(v)
	c.mu.Unlock()
}

// markPinged records a successful Ping. Once the monitor has reported,
// its view wins: a server lost right after Ping must stay not-live.
func (c *Client) markPinged() {
	c.mu.Lock()
	if !c.reported {
		c.live.Store(true)
	}
	c.mu.Unlock()
}

func hasKnownServer(t description.Topology) bool {
	for _, s := range t.Servers {
		if s.Kind != description.Unknown {
			return true
		}
	}
	return false
}

// Live reports whether the driver currently sees a usable server. It reads
// locally cached state only.
func (c *Client) Live() bool {
	if c == nil || c.client == nil {
		return false
	}
	return c.live.Load()
}

// Close disconnects the underlying driver client.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	c.setLive(false)
	if err := c.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}

// Database returns a handle for the named database.
func (c *Client) Database(name string) *mongo.Database {
	return c.client.Database(name)
}

// Raw exposes the driver client for code that needs the full API.
func (c *Client) Raw() *mongo.Client {
	return c.client
}

// ValidateURI performs a syntax-only check of a connection string: a
// mongodb:// or mongodb+srv:// scheme followed by at least one host. It does
// not resolve SRV records, so a transient DNS outage is never reported as a
// configuration error.
func ValidateURI(uri string) error {
	uri = strings.TrimSpace(uri)
	var rest string
	switch {
	case strings.HasPrefix(uri, "mongodb://"):
		rest = strings.TrimPrefix(uri, "mongodb://")
	case strings.HasPrefix(uri, "mongodb+srv://"):
		rest = strings.TrimPrefix(uri, "mongodb+srv://")
	default:
		return errors.New(`scheme must be "mongodb://" or "mongodb+srv://"`)
	}

	hosts := rest
	if i := strings.IndexAny(hosts, "/?"); i >= 0 {
		hosts = hosts[:i]
	}
	if i := strings.LastIndex(hosts, "@"); i >= 0 {
		hosts = hosts[i+1:]
	}
	for _, h := range strings.Split(hosts, ",") {
		if strings.TrimSpace(h) == "" {
			return errors.New("connection string has an empty host")
		}
	}
	return nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
