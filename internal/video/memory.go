package video

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory Repository. Suitable for development
// and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	videos map[string]*Video
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{videos: make(map[string]*Video)}
}

// Save persists a new video.
func (r *MemoryRepository) Save(_ context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.ID] = v.Clone()
	return nil
}

// FindByID retrieves a video by ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v.Clone(), nil
}

// ListByOwner returns the owner's videos, newest first.
func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string, limit int) ([]*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Video
	for _, v := range r.videos {
		if v.OwnerID == ownerID {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update applies fn to the stored video under the repository lock.
func (r *MemoryRepository) Update(_ context.Context, id string, fn func(*Video) error) (*Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := v.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.videos[id] = working
	return working.Clone(), nil
}

// Delete removes a video.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return ErrNotFound
	}
	delete(r.videos, id)
	return nil
}
