// Package database opens the PostgreSQL pool with either driver.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// Drivers accepted by Open.
const (
	DriverPGX = "pgx"
	DriverPQ  = "postgres"
)

// Options tunes the pool.
type Options struct {
	Driver       string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// Open connects and pings. driver is "pgx" (default) or "postgres" (lib/pq).
func Open(ctx context.Context, dsn string, opts Options) (*sql.DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverPGX
	}
	if driver != DriverPGX && driver != DriverPQ {
		return nil, fmt.Errorf("unsupported postgres driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLife)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
