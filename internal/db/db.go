package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to Postgres through pgx or to SQLite through modernc. SQLite
// is limited to a single connection since it does not support concurrent
// writers and an in-memory database lives on one connection.
func Open(ctx context.Context, driver, dsn string, options PoolOptions) (*sqlx.DB, error) {
	database, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	switch driver {
	case DriverSQLite:
		database.SetMaxOpenConns(1)
	default:
		if options.MaxOpenConns > 0 {
			database.SetMaxOpenConns(options.MaxOpenConns)
		}
		if options.MaxIdleConns > 0 {
			database.SetMaxIdleConns(options.MaxIdleConns)
		}
		if options.ConnMaxLifetime > 0 {
			database.SetConnMaxLifetime(options.ConnMaxLifetime)
		}
		if options.ConnMaxIdleTime > 0 {
			database.SetConnMaxIdleTime(options.ConnMaxIdleTime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := database.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	return database, nil
}

// OpenMemory returns a migrated in-memory SQLite database.
func OpenMemory(ctx context.Context) (*sqlx.DB, error) {
	database, err := Open(ctx, DriverSQLite, ":memory:", PoolOptions{})
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return database, nil
}
