package user

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// Suitable for development and testing; swap for Postgres in production.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
}

// NewMemoryRepository creates a new in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// Create persists a new user.
func (r *MemoryRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	cp := *u
	r.users[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	return nil
}

// FindByID retrieves a user by ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// FindByEmail retrieves a user by email.
func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

// AdjustCredit applies delta to the balance under the repository lock.
func (r *MemoryRepository) AdjustCredit(_ context.Context, id string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	if u.Credit+delta < 0 {
		return u.Credit, ErrInsufficientCredit
	}
	u.Credit += delta
	return u.Credit, nil
}

// Delete removes a user.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.users, id)
	return nil
}
