// db/mysql/mysql.go
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dalemusser/jobboard/pantry/db/liveness"
	"github.com/dalemusser/jobboard/pantry/dbconn"
	"github.com/go-sql-driver/mysql"
)

// PoolConfig holds connection pool settings for MySQL.
type PoolConfig struct {
	// MaxOpenConns sets the maximum number of open connections to the database.
	// Default (0) means unlimited.
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of connections in the idle pool.
	// Default is 2.
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime sets the maximum amount of time a connection may be idle.
	ConnMaxIdleTime time.Duration

	// Probe controls the background ping that drives Live.
	Probe liveness.Options
}

// DefaultPoolConfig returns sensible defaults for production use.
//
//	MaxOpenConns:    25
//	MaxIdleConns:    5
//	ConnMaxLifetime: 5 minutes
//	ConnMaxIdleTime: 5 minutes
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// DB is a MySQL connection pool usable as a dbconn handle.
type DB struct {
	db    *sql.DB
	probe *liveness.Probe
}

// Connect opens a pool for dsn and pings it before returning. When the DSN
// sets no dial timeout, the deadline of ctx is used.
//
// DSN format:
//
//	user:password@tcp(host:port)/dbname
//	user:password@tcp(host:port)/dbname?parseTime=true
func Connect(ctx context.Context, dsn string, pc PoolConfig) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if cfg.Timeout == 0 {
		if deadline, ok := ctx.Deadline(); ok {
			if d := time.Until(deadline); d > 0 {
				cfg.Timeout = d
			}
		}
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	if pc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pc.MaxOpenConns)
	}
	if pc.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pc.ConnMaxLifetime)
	}
	if pc.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pc.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}

	return &DB{db: db, probe: liveness.Start(db.PingContext, pc.Probe)}, nil
}

// Dialer adapts Connect to a dbconn.DialFunc.
func Dialer(pc PoolConfig) dbconn.DialFunc[*DB] {
	return func(ctx context.Context, dsn string) (*DB, error) {
		return Connect(ctx, dsn, pc)
	}
}

// Live reports the result of the most recent background pings.
func (d *DB) Live() bool {
	return d != nil && d.probe.Live()
}

// Close stops the probe and closes the pool.
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

// ValidateDSN parses dsn without connecting.
func ValidateDSN(dsn string) error {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	return nil
}
