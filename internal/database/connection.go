package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/smarttravel/checkout-backend/internal/config"
)

// DB is what the server needs from the connection outside the repositories
type DB interface {
	PingContext(ctx context.Context) error
	Close() error
	Sqlx() *sqlx.DB
}

// PostgresDB wraps the pooled sqlx handle
type PostgresDB struct {
	*sqlx.DB
}

// Sqlx exposes the handle the repositories query through
func (db *PostgresDB) Sqlx() *sqlx.DB {
	return db.DB
}

// withSimpleProtocol avoids "bind message has N result formats" errors
// behind transaction-mode poolers such as Supavisor and PgBouncer
func withSimpleProtocol(url string) string {
	if strings.Contains(url, "prefer_simple_protocol") {
		return url
	}
	separator := "?"
	if strings.Contains(url, "?") {
		separator = "&"
	}
	return url + separator + "prefer_simple_protocol=true"
}

// NewConnection opens and verifies the PostgreSQL pool
func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sqlx.Open("postgres", withSimpleProtocol(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}
