// Package inmemory provides an in-memory DocumentStore for tests and
// single-instance local runs.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/ledgerscan/internal/domain"
	"github.com/dvloznov/ledgerscan/internal/ingest"
)

// Store keeps document records in memory. It is safe for concurrent use;
// the mutex makes TryMarkProcessing atomic with respect to every other
// mutation.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*domain.UploadedDocument
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*domain.UploadedDocument)}
}

func (s *Store) Create(ctx context.Context, doc *domain.UploadedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.UploadedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok || doc.Deleted {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *Store) Update(ctx context.Context, doc *domain.UploadedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

// TryMarkProcessing claims the Uploaded/Failed to Processing transition.
// Any other current status loses the claim without error.
func (s *Store) TryMarkProcessing(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.Deleted {
		return false, domain.ErrNotFound
	}
	if doc.Status != domain.StatusUploaded && doc.Status != domain.StatusFailed {
		return false, nil
	}
	doc.Status = domain.StatusProcessing
	doc.ProcessingMessage = "processing"
	doc.UpdatedAt = at
	return true, nil
}

// TryMarkImported claims the Processed to Imported transition for one
// importer. Any other current status loses the claim without error.
func (s *Store) TryMarkImported(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.Deleted {
		return false, domain.ErrNotFound
	}
	if doc.Status != domain.StatusProcessed {
		return false, nil
	}
	doc.Status = domain.StatusImported
	doc.ProcessingMessage = "importing"
	doc.UpdatedAt = at
	return true, nil
}

func (s *Store) StuckProcessing(ctx context.Context, cutoff time.Time) ([]*domain.UploadedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stuck []*domain.UploadedDocument
	for _, doc := range s.docs {
		if doc.Deleted || doc.Status != domain.StatusProcessing {
			continue
		}
		if doc.UpdatedAt.Before(cutoff) {
			cp := *doc
			stuck = append(stuck, &cp)
		}
	}
	return stuck, nil
}

var _ ingest.DocumentStore = (*Store)(nil)
