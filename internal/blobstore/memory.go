package blobstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory BlobStore for tests and local runs. It is safe
// for concurrent use. Data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Store implements BlobStore.
func (s *MemoryStore) Store(ctx context.Context, data []byte, filename, kind, ownerID string) (string, error) {
	path := fmt.Sprintf("mem://%s/%s/%s-%s", ownerID, strings.ToLower(kind), uuid.New().String(), sanitizeFilename(filename))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy so the caller cannot mutate stored bytes afterwards.
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[path] = buf

	return path, nil
}

// Read implements BlobStore.
func (s *MemoryStore) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[path]
	if !ok {
		return nil, fmt.Errorf("Read: no blob stored at %s", path)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete implements BlobStore.
func (s *MemoryStore) Delete(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[path]; !ok {
		return false, nil
	}
	delete(s.blobs, path)
	return true, nil
}

// Exists implements BlobStore.
func (s *MemoryStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blobs[path]
	return ok, nil
}

var _ BlobStore = (*MemoryStore)(nil)
