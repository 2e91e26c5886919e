// Package repo implements the record store for orders, backed by GORM.
// This file contains database bootstrapping helpers for Postgres (production)
// and SQLite (pure Go driver, local runs and tests) plus schema migrations.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-order-backend/internal/config"
	"github.com/tbourn/go-order-backend/internal/domain"
)

// PoolOptions tunes the database/sql pool underneath GORM.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func (p PoolOptions) withDefaults() PoolOptions {
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = 10
	}
	if p.MaxIdleConns < 0 {
		p.MaxIdleConns = 0
	}
	if p.ConnMaxIdleTime <= 0 {
		p.ConnMaxIdleTime = 5 * time.Minute
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = 30 * time.Minute
	}
	return p
}

// Open connects to the store selected by cfg.Driver, installs the
// OpenTelemetry GORM plugin and applies pool settings.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	pool := PoolOptions{MaxOpenConns: cfg.MaxOpenConns, MaxIdleConns: cfg.MaxIdleConns}
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(cfg.URL, pool)
	case config.DriverSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("repo: unsupported driver %q", cfg.Driver)
	}
}

// OpenPostgres opens a pgx-backed GORM handle. Connection failures are
// reported as StoreUnavailable.
func OpenPostgres(dsn string, pool PoolOptions) (*gorm.DB, error) {
	const op = "repo.OpenPostgres"

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	if err := instrument(db); err != nil {
		return nil, err
	}
	applyPool(db, pool)
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if err := instrument(db); err != nil {
		return nil, err
	}
	// One writer; a retained idle connection also keeps shared in-memory
	// databases alive between queries.
	applyPool(db, PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1})
	return db, nil
}

func instrument(db *gorm.DB) error {
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return fmt.Errorf("repo: install tracing plugin: %w", err)
	}
	return nil
}

func applyPool(db *gorm.DB, p PoolOptions) {
	p = p.withDefaults()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(p.MaxOpenConns)
		sqlDB.SetMaxIdleConns(p.MaxIdleConns)
		sqlDB.SetConnMaxIdleTime(p.ConnMaxIdleTime)
		sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
	}
}

// AutoMigrate creates or updates the orders and idempotency_entries tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Order{},
		&domain.IdempotencyEntry{},
	)
}

// Ping checks that the store answers within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	const op = "repo.Ping"

	sqlDB, err := db.DB()
	if err != nil {
		return storeErr(op, err)
	}
	return storeErr(op, sqlDB.PingContext(ctx))
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
