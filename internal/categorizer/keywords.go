package categorizer

import (
	"context"
	"strings"
	"sync"
)

// maxLearnedKeywords caps the learned keyword set per category. Once the cap
// is hit the oldest keywords are evicted first.
const maxLearnedKeywords = 20

// KeywordStore is the explicit write path for learned category keywords.
// Keeping learning behind its own store makes the mutation auditable instead
// of a side effect of suggestion calls.
type KeywordStore interface {
	// Keywords returns the learned keywords for a category, oldest first.
	Keywords(ctx context.Context, userID, categoryID string) ([]string, error)
	// Append adds tokens to a category's learned set. Duplicates are
	// ignored; the set is capped with oldest-first eviction.
	Append(ctx context.Context, userID, categoryID string, tokens []string) error
}

// MemoryKeywordStore is an in-memory KeywordStore keyed by user and category.
type MemoryKeywordStore struct {
	mu       sync.RWMutex
	keywords map[string][]string
}

func NewMemoryKeywordStore() *MemoryKeywordStore {
	return &MemoryKeywordStore{keywords: make(map[string][]string)}
}

func (s *MemoryKeywordStore) Keywords(ctx context.Context, userID, categoryID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.keywords[storeKey(userID, categoryID)]
	out := make([]string, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryKeywordStore) Append(ctx context.Context, userID, categoryID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(userID, categoryID)
	current := s.keywords[key]

	seen := make(map[string]bool, len(current)+len(tokens))
	for _, kw := range current {
		seen[kw] = true
	}
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		current = append(current, tok)
	}
	if len(current) > maxLearnedKeywords {
		current = current[len(current)-maxLearnedKeywords:]
	}
	s.keywords[key] = current
	return nil
}

func storeKey(userID, categoryID string) string {
	return userID + "/" + categoryID
}
