package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryStorage_StoreAndDelete(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	url, err := store.Store(ctx, PrefixVideos, "a.mp4", "video/mp4", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !strings.Contains(url, PrefixVideos+"/a.mp4") {
		t.Errorf("expected URL to contain the object key, got %q", url)
	}
	if !store.Has(url) {
		t.Error("expected object to exist after store")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 object, got %d", store.Len())
	}

	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Has(url) {
		t.Error("expected object removed after delete")
	}
}

func TestMemoryStorage_Delete_NotManaged(t *testing.T) {
	store := NewMemoryStorage()

	err := store.Delete(context.Background(), "https://elsewhere.example.com/a.mp4")
	if !errors.Is(err, ErrNotManaged) {
		t.Errorf("expected ErrNotManaged, got %v", err)
	}
}

func TestMemoryStorage_SignURL(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	url, err := store.Store(ctx, PrefixOutputs, "r.mp4", "video/mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	signed, err := store.SignURL(ctx, url, time.Hour)
	if err != nil {
		t.Fatalf("SignURL() error = %v", err)
	}
	if !strings.HasPrefix(signed, url) {
		t.Errorf("expected signed URL derived from %q, got %q", url, signed)
	}
	if !strings.Contains(signed, "expires=3600") {
		t.Errorf("expected expiry marker, got %q", signed)
	}

	if _, err := store.SignURL(ctx, "https://elsewhere.example.com/a.mp4", time.Hour); !errors.Is(err, ErrNotManaged) {
		t.Errorf("expected ErrNotManaged, got %v", err)
	}
}

func TestMemoryStorage_PublicURL(t *testing.T) {
	store := NewMemoryStorage()

	url := store.PublicURL(PrefixThumbnails, "v1.jpg")
	if !strings.HasSuffix(url, PrefixThumbnails+"/v1.jpg") {
		t.Errorf("unexpected public URL %q", url)
	}
}
