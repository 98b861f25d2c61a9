package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ecommerce-platform/internal/config"
)

// DB wraps the sql connection pool
type DB struct {
	*sql.DB
}

// NewConnection opens a Postgres connection pool and verifies it
func NewConnection(cfg config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations applies all pending schema migrations
func (db *DB) RunMigrations() error {
	return NewMigrator(db.DB).Run()
}
