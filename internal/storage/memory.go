package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Compile-time check that MemoryStorage implements ObjectStorage.
var _ ObjectStorage = (*MemoryStorage)(nil)

// MemoryStorage keeps objects in a map. Suitable for development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryStorage creates an in-memory object storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string][]byte),
		baseURL: "memory://storage/",
	}
}

// Store writes data under prefix/name.
func (m *MemoryStorage) Store(_ context.Context, prefix, name, _ string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("storage: read data: %w", err)
	}
	url := m.PublicURL(prefix, name)
	m.mu.Lock()
	m.objects[url] = content
	m.mu.Unlock()
	return url, nil
}

// Delete removes the object behind a URL.
func (m *MemoryStorage) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, m.baseURL) {
		return ErrNotManaged
	}
	m.mu.Lock()
	delete(m.objects, url)
	m.mu.Unlock()
	return nil
}

// SignURL returns the URL with a fake expiry marker.
func (m *MemoryStorage) SignURL(_ context.Context, url string, expires time.Duration) (string, error) {
	if !strings.HasPrefix(url, m.baseURL) {
		return "", ErrNotManaged
	}
	return fmt.Sprintf("%s?expires=%d", url, int(expires.Seconds())), nil
}

// PresignUpload returns a direct URL; the memory backend has no real
// upload channel, so clients of this impl store through Store instead.
func (m *MemoryStorage) PresignUpload(_ context.Context, prefix, name, _ string, expires time.Duration) (string, error) {
	return fmt.Sprintf("%s?upload&expires=%d", m.PublicURL(prefix, name), int(expires.Seconds())), nil
}

// PublicURL returns the URL an object will have under prefix/name.
func (m *MemoryStorage) PublicURL(prefix, name string) string {
	return m.baseURL + prefix + "/" + name
}

// Len reports how many objects are stored. Test helper.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Has reports whether an object exists for the URL. Test helper.
func (m *MemoryStorage) Has(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[url]
	return ok
}
