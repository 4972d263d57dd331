// Package video provides the video registry: uploaded or imported source
// videos owned by a user, referenced by summarization jobs.
package video

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Static errors for video operations.
var (
	// ErrNotFound is returned when a video cannot be found.
	ErrNotFound = errors.New("video: not found")
	// ErrForbidden is returned when the requester does not own the video.
	ErrForbidden = errors.New("video: not owned by requester")
	// ErrInvalidSource is returned for an unrecognized source kind.
	ErrInvalidSource = errors.New("video: invalid source")
)

// Source identifies how a video entered the registry.
type Source string

const (
	// SourceUpload marks a video uploaded directly by the owner.
	SourceUpload Source = "upload"
	// SourceYouTube marks a video imported from a YouTube URL.
	SourceYouTube Source = "youtube"
)

// IsValid reports whether the source is a known kind.
func (s Source) IsValid() bool {
	return s == SourceUpload || s == SourceYouTube
}

// Video is a registered source video.
type Video struct {
	// ID is the unique identifier for the video.
	ID string
	// OwnerID is the user who owns the video.
	OwnerID string
	// StorageURL points at the video object in storage.
	StorageURL string
	// ThumbnailURL points at the thumbnail object, empty until generated.
	ThumbnailURL string
	// Source is how the video entered the registry.
	Source Source
	// Name is the display name, mutable by the owner.
	Name string
	// CreatedAt is when the video was registered.
	CreatedAt time.Time
}

// New creates a Video with a generated ID.
func New(ownerID, name, storageURL string, source Source) *Video {
	return &Video{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		StorageURL: storageURL,
		Source:     source,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
}

// Clone returns a deep copy of the video.
func (v *Video) Clone() *Video {
	cp := *v
	return &cp
}

// Repository defines the interface for video persistence.
type Repository interface {
	// Save persists a new video.
	Save(ctx context.Context, v *Video) error

	// FindByID retrieves a video by ID. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, id string) (*Video, error)

	// ListByOwner returns the owner's videos, newest first, at most limit
	// entries when limit > 0.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*Video, error)

	// Update applies fn to the stored video atomically and persists the
	// result. A non-nil error from fn discards the changes and is returned
	// unchanged.
	Update(ctx context.Context, id string, fn func(*Video) error) (*Video, error)

	// Delete removes a video. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error
}
