package video

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository persists videos in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed video repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const videoColumns = `id, owner_id, storage_url, thumbnail_url, source, name, created_at`

// Save persists a new video.
func (r *PostgresRepository) Save(ctx context.Context, v *Video) error {
	query := `
		INSERT INTO videos (` + videoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		v.ID, v.OwnerID, v.StorageURL, nullable(v.ThumbnailURL),
		string(v.Source), v.Name, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("video: save: %w", err)
	}
	return nil
}

// FindByID retrieves a video by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("video: find: %w", err)
	}
	return v, nil
}

// ListByOwner returns the owner's videos, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE owner_id = $1 ORDER BY created_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("video: list: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("video: list scan: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// Update applies fn inside a transaction holding the video's row lock.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(*Video) error) (*Video, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("video: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1 FOR UPDATE`, id)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("video: update select: %w", err)
	}

	if err := fn(v); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE videos SET name = $2, thumbnail_url = $3 WHERE id = $1`,
		v.ID, v.Name, nullable(v.ThumbnailURL),
	)
	if err != nil {
		return nil, fmt.Errorf("video: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("video: commit: %w", err)
	}
	return v, nil
}

// Delete removes a video.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("video: delete: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanVideo reads one video row.
func scanVideo(row pgx.Row) (*Video, error) {
	var v Video
	var source string
	var thumbnailURL *string

	err := row.Scan(&v.ID, &v.OwnerID, &v.StorageURL, &thumbnailURL, &source, &v.Name, &v.CreatedAt)
	if err != nil {
		return nil, err
	}

	v.Source = Source(source)
	if thumbnailURL != nil {
		v.ThumbnailURL = *thumbnailURL
	}
	return &v, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
