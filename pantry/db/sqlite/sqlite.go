// db/sqlite/sqlite.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/jobboard/pantry/db/liveness"
	"github.com/dalemusser/jobboard/pantry/dbconn"
	_ "github.com/mattn/go-sqlite3"
)

// Options configures SQLite database behavior.
type Options struct {
	// WALMode enables Write-Ahead Logging for better concurrent reads.
	WALMode bool

	// ForeignKeys enables foreign key constraint enforcement.
	ForeignKeys bool

	// BusyTimeout sets how long to wait when the database is locked (milliseconds).
	BusyTimeout int

	// Synchronous sets the synchronous mode: "OFF", "NORMAL", "FULL" or "EXTRA".
	Synchronous string

	// MaxOpenConns limits concurrent connections. 1 avoids "database is
	// locked" errors for most workloads.
	MaxOpenConns int

	// MaxIdleConns sets idle connection pool size.
	MaxIdleConns int

	// Probe controls the background ping that drives Live.
	Probe liveness.Options
}

// DefaultOptions returns sensible defaults for web applications: WAL,
// foreign keys, a 5 second busy timeout, NORMAL sync, one connection.
func DefaultOptions() Options {
	return Options{
		WALMode:      true,
		ForeignKeys:  true,
		BusyTimeout:  5000,
		Synchronous:  "NORMAL",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

// DB is a SQLite database usable as a dbconn handle.
type DB struct {
	db    *sql.DB
	probe *liveness.Probe
}

// Connect opens the database at path and applies the pragmas in opts.
//
// Path can be:
//   - A file path: "./data.db", "/var/lib/jobboard/data.db"
//   - ":memory:" for an in-memory database (data lost on close)
//   - "file::memory:?cache=shared" for a shared in-memory database
func Connect(ctx context.Context, path string, opts Options) (*DB, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", buildDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if err := applyPragmas(ctx, db, opts); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db, probe: liveness.Start(db.PingContext, opts.Probe)}, nil
}

// Dialer adapts Connect to a dbconn.DialFunc.
func Dialer(opts Options) dbconn.DialFunc[*DB] {
	return func(ctx context.Context, path string) (*DB, error) {
		return Connect(ctx, path, opts)
	}
}

// Live reports the result of the most recent background pings.
func (d *DB) Live() bool {
	return d != nil && d.probe.Live()
}

// Close stops the probe and closes the database.
func (d *DB) Close(ctx context.Context) error {
	if d == nil || d.db == nil {
		return nil
	}
	d.probe.Stop()
	return d.db.Close()
}

// Raw returns the underlying *sql.DB.
func (d *DB) Raw() *sql.DB {
	return d.db
}

// ValidatePath rejects paths that cannot name a database. Query
// parameters belong in Options, not in the path.
func ValidatePath(path string) error {
	switch {
	case strings.TrimSpace(path) == "":
		return errors.New("sqlite: empty path")
	case strings.HasPrefix(path, "file:"):
		return nil
	case strings.Contains(path, "?"):
		return errors.New("sqlite: query parameters are only allowed with file: URIs")
	}
	return nil
}

// buildDSN appends the driver's connection parameters to path.
func buildDSN(path string, opts Options) string {
	var params []string
	if opts.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", opts.BusyTimeout))
	}
	if opts.ForeignKeys {
		params = append(params, "_foreign_keys=on")
	}
	if len(params) == 0 {
		return path
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// applyPragmas sets SQLite pragmas that must be run as SQL statements.
func applyPragmas(ctx context.Context, db *sql.DB, opts Options) error {
	if opts.WALMode {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("set journal_mode: %w", err)
		}
	}
	if opts.Synchronous != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA synchronous=%s", opts.Synchronous)); err != nil {
			return fmt.Errorf("set synchronous: %w", err)
		}
	}
	return nil
}
