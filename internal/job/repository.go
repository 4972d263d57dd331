package job

import (
	"context"
	"errors"
)

// Static repository errors.
var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job: not found")
	// ErrJobStillRunning is returned when an operation requires a terminal
	// job but the job is still pending or processing.
	ErrJobStillRunning = errors.New("job: still running")
)

// Repository defines the interface for job persistence.
//
// Update is the linchpin for webhook reconciliation: it runs the mutation
// under the job's row lock, so concurrent webhook deliveries observe each
// other's transitions and refund decisions are made against current state.
type Repository interface {
	// Save persists a new job.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its ID.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// ListByUser returns all jobs belonging to a user.
	ListByUser(ctx context.Context, userID string) ([]*Job, error)

	// Update applies fn to the job atomically with respect to other
	// Update calls for the same job, then persists the result. If fn
	// returns an error, nothing is persisted and the error is returned
	// unchanged. Returns the updated job.
	Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error)

	// Delete removes a job.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error

	// PurgeByVideo removes all jobs referencing the video and returns the
	// removed jobs, failing with ErrJobStillRunning without removing
	// anything if any of them is non-terminal. The check and the removal
	// are atomic, so a webhook cannot finalize a job mid-purge.
	PurgeByVideo(ctx context.Context, videoID string) ([]*Job, error)
}
