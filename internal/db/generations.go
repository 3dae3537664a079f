package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/readaloudhq/readaloud/internal/models"
)

func (db *DB) CreateGeneration(ctx context.Context, gen *models.Generation) error {
	query := `
		INSERT INTO generations (
			id, title, description, text_content, voice, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		gen.ID, gen.Title, gen.Description, gen.TextContent, gen.Voice, gen.Status,
	).Scan(&gen.CreatedAt)
}

func (db *DB) GetGeneration(ctx context.Context, id uuid.UUID) (*models.Generation, error) {
	query := `
		SELECT
			id, title, description, text_content, voice, status,
			storage_path, file_url, url_expires_at, error, created_at, completed_at
		FROM generations
		WHERE id = $1
	`

	gen := &models.Generation{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&gen.ID, &gen.Title, &gen.Description, &gen.TextContent, &gen.Voice,
		&gen.Status, &gen.StoragePath, &gen.FileURL, &gen.URLExpiresAt,
		&gen.Error, &gen.CreatedAt, &gen.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	return gen, nil
}

// ListGenerations returns all generations ordered by creation date (newest first).
func (db *DB) ListGenerations(ctx context.Context) ([]models.Generation, error) {
	query := `
		SELECT
			id, title, description, text_content, voice, status,
			storage_path, file_url, url_expires_at, error, created_at, completed_at
		FROM generations
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var gens []models.Generation
	for rows.Next() {
		var gen models.Generation
		err := rows.Scan(
			&gen.ID, &gen.Title, &gen.Description, &gen.TextContent, &gen.Voice,
			&gen.Status, &gen.StoragePath, &gen.FileURL, &gen.URLExpiresAt,
			&gen.Error, &gen.CreatedAt, &gen.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gens = append(gens, gen)
	}

	return gens, rows.Err()
}

// MarkCompleted applies the terminal success transition as a single atomic write:
// status, storage path, signed URL, optional metadata, and completed_at all land
// in one UPDATE. The status guard ensures a job settles exactly once.
func (db *DB) MarkCompleted(ctx context.Context, id uuid.UUID, storagePath, fileURL string, urlExpiresAt time.Time, title, description *string) error {
	query := `
		UPDATE generations
		SET status = $1,
		    storage_path = $2,
		    file_url = $3,
		    url_expires_at = $4,
		    title = COALESCE(title, $5),
		    description = COALESCE(description, $6),
		    completed_at = $7
		WHERE id = $8 AND status = $9
	`

	_, err := db.ExecContext(
		ctx, query,
		models.StatusCompleted, storagePath, fileURL, urlExpiresAt,
		title, description, time.Now().UTC(), id, models.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark generation completed: %w", err)
	}

	return nil
}

// MarkFailed applies the terminal failure transition as a single atomic write.
func (db *DB) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE generations
		SET status = $1, error = $2, completed_at = $3
		WHERE id = $4 AND status = $5
	`

	_, err := db.ExecContext(
		ctx, query,
		models.StatusFailed, errorMessage, time.Now().UTC(), id, models.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark generation failed: %w", err)
	}

	return nil
}

// UpdateFileURL caches a refreshed signed URL on the row.
func (db *DB) UpdateFileURL(ctx context.Context, id uuid.UUID, fileURL string, expiresAt time.Time) error {
	query := `UPDATE generations SET file_url = $1, url_expires_at = $2 WHERE id = $3`

	_, err := db.ExecContext(ctx, query, fileURL, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update file URL: %w", err)
	}

	return nil
}

func (db *DB) DeleteGeneration(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM generations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete generation: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}
