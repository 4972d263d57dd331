// Package storage provides the object storage capability used for video
// assets, thumbnails, and summarization results. It defines the
// ObjectStorage port and implementations for S3-compatible buckets and
// in-memory storage for development and tests.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Logical prefixes for stored objects, mirrored as key prefixes in the bucket.
const (
	PrefixVideos     = "videos"
	PrefixThumbnails = "thumbnails"
	PrefixOutputs    = "outputs"
)

// ErrNotManaged is returned when a URL does not belong to this storage.
var ErrNotManaged = errors.New("storage: url not managed by this storage")

// ObjectStorage defines the interface for storing and removing assets.
type ObjectStorage interface {
	// Store writes data under prefix/name and returns the public URL.
	Store(ctx context.Context, prefix, name, contentType string, data io.Reader) (url string, err error)

	// Delete removes the object behind a URL previously returned by Store
	// or PublicURL. Returns ErrNotManaged for foreign URLs.
	Delete(ctx context.Context, url string) error

	// SignURL returns a time-limited download URL for the object behind url.
	SignURL(ctx context.Context, url string, expires time.Duration) (string, error)

	// PresignUpload returns a time-limited URL a client can PUT the object
	// to directly, bypassing the backend.
	PresignUpload(ctx context.Context, prefix, name, contentType string, expires time.Duration) (string, error)

	// PublicURL returns the URL an object will have once stored under
	// prefix/name, without touching the backend.
	PublicURL(prefix, name string) string
}
