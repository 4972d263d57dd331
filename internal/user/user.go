// Package user provides the User entity and the credit ledger.
// The ledger is an integer balance per user, mutated only through
// Repository.AdjustCredit so concurrent debits and refunds cannot
// lose updates.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Static errors for user operations.
var (
	// ErrNotFound is returned when a user cannot be found.
	ErrNotFound = errors.New("user: not found")
	// ErrEmailTaken is returned when registering with an email that already exists.
	ErrEmailTaken = errors.New("user: email already registered")
	// ErrInsufficientCredit is returned when a debit would make the balance negative.
	ErrInsufficientCredit = errors.New("user: insufficient credit")
	// ErrBadCredentials is returned when email/password verification fails.
	ErrBadCredentials = errors.New("user: invalid email or password")
)

// User represents an account with a credit balance.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Email is the login identity, unique across users.
	Email string
	// Username is the display name.
	Username string
	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string
	// Credit is the current balance. Never negative.
	Credit int
	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// New creates a User with a generated ID and a hashed password.
func New(email, username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// Repository defines the interface for user persistence and the credit ledger.
type Repository interface {
	// Create persists a new user. Returns ErrEmailTaken on duplicate email.
	Create(ctx context.Context, u *User) error

	// FindByID retrieves a user by ID. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail retrieves a user by email. Returns ErrNotFound if absent.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// AdjustCredit applies delta to the user's balance as a single atomic
	// read-modify-write and returns the new balance. Returns
	// ErrInsufficientCredit when the result would go negative, leaving the
	// balance unchanged.
	AdjustCredit(ctx context.Context, id string, delta int) (int, error)

	// Delete removes a user. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}
