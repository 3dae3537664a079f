package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested generation does not exist.
var ErrNotFound = errors.New("generation not found")

type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn}, nil
}

// Migrate creates the generations table if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS generations (
			id             UUID PRIMARY KEY,
			title          TEXT,
			description    TEXT,
			text_content   TEXT NOT NULL,
			voice          TEXT NOT NULL DEFAULT 'af_heart',
			status         TEXT NOT NULL DEFAULT 'processing',
			storage_path   TEXT,
			file_url       TEXT,
			url_expires_at TIMESTAMPTZ,
			error          TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at   TIMESTAMPTZ
		)
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate generations table: %w", err)
	}

	return nil
}
