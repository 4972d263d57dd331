package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository persists users in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed user repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists a new user.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, credit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, u.ID, u.Email, u.Username, u.PasswordHash, u.Credit, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("user: create: %w", err)
	}
	return nil
}

// FindByID retrieves a user by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findBy(ctx, "id", id)
}

// FindByEmail retrieves a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findBy(ctx, "email", email)
}

func (r *PostgresRepository) findBy(ctx context.Context, column, value string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, username, password_hash, credit, created_at
		FROM users
		WHERE %s = $1
	`, column)

	var u User
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Credit,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user: find: %w", err)
	}
	return &u, nil
}

// AdjustCredit applies delta with the floor check in a single statement,
// relying on row-level locking for atomicity.
func (r *PostgresRepository) AdjustCredit(ctx context.Context, id string, delta int) (int, error) {
	query := `
		UPDATE users
		SET credit = credit + $1
		WHERE id = $2 AND credit + $1 >= 0
		RETURNING credit
	`
	var balance int
	err := r.pool.QueryRow(ctx, query, delta, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user does not exist or the floor check failed.
			if _, findErr := r.FindByID(ctx, id); findErr != nil {
				return 0, findErr
			}
			return 0, ErrInsufficientCredit
		}
		return 0, fmt.Errorf("user: adjust credit: %w", err)
	}
	return balance, nil
}

// Delete removes a user.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("user: delete: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
