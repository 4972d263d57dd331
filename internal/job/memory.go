package job

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with a mutex for thread-safe access; Update holds the
// lock for the whole read-modify-write, which stands in for the row-level
// locking a database provides.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Save persists a new job. Stores a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job.Clone()
	return nil
}

// FindByID retrieves a job by its ID. Returns a clone.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListByUser returns all jobs for a user, oldest first.
func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Job, 0)
	for _, job := range r.jobs {
		if job.UserID == userID {
			result = append(result, job.Clone())
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// Update applies fn under the repository lock.
func (r *MemoryRepository) Update(_ context.Context, id string, fn func(*Job) error) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	working := job.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.jobs[id] = working
	return working.Clone(), nil
}

// Delete removes a job.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

// PurgeByVideo removes all jobs for a video iff every one is terminal.
func (r *MemoryRepository) PurgeByVideo(_ context.Context, videoID string) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Job
	for _, job := range r.jobs {
		if job.VideoID != videoID {
			continue
		}
		if !job.Status.IsTerminal() {
			return nil, ErrJobStillRunning
		}
		matched = append(matched, job.Clone())
	}
	for _, job := range matched {
		delete(r.jobs, job.ID)
	}
	return matched, nil
}
