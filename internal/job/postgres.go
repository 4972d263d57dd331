package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository persists jobs in Postgres. Update and PurgeByVideo
// use SELECT ... FOR UPDATE inside a transaction so webhook reconciliation
// and video deletion are serialized per row.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed job repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const jobColumns = `id, user_id, video_id, name, status, method, subtitle, subtitle_style,
	vertical, crop_method, language, target_duration, trim_start, trim_end,
	worker_job_id, result_url, error_message, public, created_at, started_at, completed_at`

// Save persists a new job.
func (r *PostgresRepository) Save(ctx context.Context, j *Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	var trimStart, trimEnd *float64
	if j.Params.Trim != nil {
		trimStart = &j.Params.Trim.Start
		trimEnd = &j.Params.Trim.End
	}
	_, err := r.pool.Exec(ctx, query,
		j.ID, j.UserID, j.VideoID, j.Name, string(j.Status),
		string(j.Params.Method), j.Params.Subtitle, nullable(j.Params.SubtitleStyle),
		j.Params.Vertical, nullable(j.Params.CropMethod), nullable(j.Params.Language),
		j.Params.TargetDuration, trimStart, trimEnd,
		nullable(j.WorkerJobID), nullable(j.ResultURL), nullable(j.ErrorMessage),
		j.Public, j.CreatedAt, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("job: save: %w", err)
	}
	return nil
}

// FindByID retrieves a job by its ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job: find: %w", err)
	}
	return j, nil
}

// ListByUser returns all jobs for a user, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("job: list scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Update applies fn inside a transaction holding the job's row lock.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("job: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job: update select: %w", err)
	}

	if err := fn(j); err != nil {
		return nil, err
	}

	query := `
		UPDATE jobs SET
			name = $2, status = $3, worker_job_id = $4, result_url = $5,
			error_message = $6, public = $7, started_at = $8, completed_at = $9
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		j.ID, j.Name, string(j.Status),
		nullable(j.WorkerJobID), nullable(j.ResultURL), nullable(j.ErrorMessage),
		j.Public, nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("job: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("job: commit: %w", err)
	}
	return j, nil
}

// Delete removes a job.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("job: delete: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// PurgeByVideo removes all jobs for a video iff every one is terminal,
// holding row locks for the duration so a webhook cannot race the check.
func (r *PostgresRepository) PurgeByVideo(ctx context.Context, videoID string) ([]*Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("job: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE video_id = $1 FOR UPDATE`, videoID)
	if err != nil {
		return nil, fmt.Errorf("job: purge select: %w", err)
	}

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("job: purge scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job: purge rows: %w", err)
	}

	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			return nil, ErrJobStillRunning
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE video_id = $1`, videoID); err != nil {
		return nil, fmt.Errorf("job: purge delete: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("job: commit: %w", err)
	}
	return jobs, nil
}

// scanJob reads one job row.
func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var method string
	var subtitleStyle, cropMethod, language, workerJobID, resultURL, errorMessage *string
	var trimStart, trimEnd *float64
	var startedAt, completedAt *time.Time

	err := row.Scan(
		&j.ID, &j.UserID, &j.VideoID, &j.Name, &j.Status,
		&method, &j.Params.Subtitle, &subtitleStyle,
		&j.Params.Vertical, &cropMethod, &language,
		&j.Params.TargetDuration, &trimStart, &trimEnd,
		&workerJobID, &resultURL, &errorMessage,
		&j.Public, &j.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Params.Method = Method(method)
	j.Params.SubtitleStyle = deref(subtitleStyle)
	j.Params.CropMethod = deref(cropMethod)
	j.Params.Language = deref(language)
	if trimStart != nil && trimEnd != nil {
		j.Params.Trim = &TrimRange{Start: *trimStart, End: *trimEnd}
	}
	j.WorkerJobID = deref(workerJobID)
	j.ResultURL = deref(resultURL)
	j.ErrorMessage = deref(errorMessage)
	if startedAt != nil {
		j.StartedAt = *startedAt
	}
	if completedAt != nil {
		j.CompletedAt = *completedAt
	}
	return &j, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
