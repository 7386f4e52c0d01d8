// package database opens the relational store: postgresql in production, sqlite for local runs.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialect identifies the database backend.
type Dialect string

// supported dialects
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ErrUnsupportedURL is returned for database urls that match no dialect.
var ErrUnsupportedURL = errors.New("unsupported database url")

// DB wraps a GORM instance and, for postgresql, the pgx connection pool.
type DB struct {
	Pool    *pgxpool.Pool // nil for sqlite
	GORM    *gorm.DB
	Dialect Dialect
	URL     string
}

// DetectDialect maps a database url to its dialect.
// sqlite urls are "sqlite://path", "file:path" or any path ending in .db.
func DetectDialect(databaseURL string) (Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite://"),
		strings.HasPrefix(databaseURL, "file:"),
		strings.HasSuffix(databaseURL, ".db"),
		databaseURL == ":memory:":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, databaseURL)
}

// New opens a database connection for the given url.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	dialect, err := DetectDialect(databaseURL)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	if dialect == DialectSQLite {
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}

		gormDB, err := gorm.Open(sqlite.Open(path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &DB{GORM: gormDB, Dialect: dialect, URL: databaseURL}, nil
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.Open(databaseURL), gormCfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return &DB{
		Pool:    pool,
		GORM:    gormDB,
		Dialect: dialect,
		URL:     databaseURL,
	}, nil
}

// Close closes the underlying connections.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if sqlDB, err := db.GORM.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Ping checks if the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.Pool != nil {
		return db.Pool.Ping(ctx)
	}
	sqlDB, err := db.GORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
