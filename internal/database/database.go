package database

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"postboard/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Connect opens a pooled Postgres handle from cfg.DatabaseURL.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, config.ErrMissingDatabaseURL
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	log.Println("[Database] Connected to postgres")
	return db, nil
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
// Every statement is idempotent so it is safe to run on each start.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.Println("[Database] Schema ready")
	return nil
}

// Schema returns the bootstrap DDL.
func Schema() string {
	return schemaSQL
}
