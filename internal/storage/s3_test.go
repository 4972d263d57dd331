package storage

import (
	"context"
	"errors"
	"testing"
)

func TestS3Storage_KeyFromURL(t *testing.T) {
	store := &S3Storage{
		bucket:  "echoclip",
		baseURL: "https://echoclip.s3.eu-west-1.amazonaws.com/",
	}

	t.Run("managed URL maps to key", func(t *testing.T) {
		key, err := store.keyFromURL("https://echoclip.s3.eu-west-1.amazonaws.com/videos/a.mp4")
		if err != nil {
			t.Fatalf("keyFromURL() error = %v", err)
		}
		if key != "videos/a.mp4" {
			t.Errorf("expected key 'videos/a.mp4', got %q", key)
		}
	})

	t.Run("foreign URL rejected", func(t *testing.T) {
		if _, err := store.keyFromURL("https://other-bucket.s3.amazonaws.com/videos/a.mp4"); !errors.Is(err, ErrNotManaged) {
			t.Errorf("expected ErrNotManaged, got %v", err)
		}
	})
}

func TestS3Storage_PublicURL(t *testing.T) {
	store := &S3Storage{
		bucket:  "echoclip",
		baseURL: "https://echoclip.s3.eu-west-1.amazonaws.com/",
	}

	url := store.PublicURL(PrefixOutputs, "summary.mp4")
	want := "https://echoclip.s3.eu-west-1.amazonaws.com/outputs/summary.mp4"
	if url != want {
		t.Errorf("PublicURL() = %q, want %q", url, want)
	}
}

func TestNewS3Storage_EndpointBaseURL(t *testing.T) {
	store, err := NewS3Storage(S3Config{
		Bucket:   "echoclip",
		Region:   "us-east-1",
		Endpoint: "https://minio.internal:9000/",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	want := "https://minio.internal:9000/echoclip/videos/a.mp4"
	if got := store.PublicURL(PrefixVideos, "a.mp4"); got != want {
		t.Errorf("PublicURL() = %q, want %q", got, want)
	}

	// Foreign URLs stay unmanaged under a custom endpoint too.
	if err := store.Delete(context.Background(), "https://echoclip.s3.us-east-1.amazonaws.com/videos/a.mp4"); !errors.Is(err, ErrNotManaged) {
		t.Errorf("expected ErrNotManaged, got %v", err)
	}
}
