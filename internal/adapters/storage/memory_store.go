package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the email and category
// stores, used by the CLI and by tests.
type MemoryStore struct {
	mu         sync.RWMutex
	emails     map[string]map[string]*core.Email // owner -> id -> email
	categories map[string][]core.Category        // owner -> categories
	logger     *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		emails:     make(map[string]map[string]*core.Email),
		categories: make(map[string][]core.Category),
		logger:     logger,
	}
}

// SaveEmail inserts or replaces an email
func (s *MemoryStore) SaveEmail(ctx context.Context, email *core.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.emails[email.Owner]
	if byID == nil {
		byID = make(map[string]*core.Email)
		s.emails[email.Owner] = byID
	}
	copied := *email
	byID[email.ID] = &copied
	return nil
}

// GetEmail retrieves one email by owner and id
func (s *MemoryStore) GetEmail(ctx context.Context, owner, id string) (*core.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[owner][id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *email
	return &copied, nil
}

// UpdateClassification atomically writes the category and classification
// state of one email
func (s *MemoryStore) UpdateClassification(ctx context.Context, owner, id, category string, cls core.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[owner][id]
	if !ok {
		return core.ErrNotFound
	}
	email.Category = category
	email.Classification = cls
	return nil
}

// ListEmails returns all emails of an owner
func (s *MemoryStore) ListEmails(ctx context.Context, owner string) ([]core.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]core.Email, 0, len(s.emails[owner]))
	for _, email := range s.emails[owner] {
		result = append(result, *email)
	}
	return result, nil
}

// ListThreadMessages returns the messages of one thread within [from, to),
// ordered chronologically
func (s *MemoryStore) ListThreadMessages(ctx context.Context, owner, threadID string, from, to time.Time) ([]core.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []core.Email
	for _, email := range s.emails[owner] {
		id := email.ThreadID
		if id == "" {
			id = email.ID
		}
		if id != threadID {
			continue
		}
		if email.Date.Before(from) || !email.Date.Before(to) {
			continue
		}
		result = append(result, *email)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// ListUnrefinedIDs returns the ids of emails whose phase 2 pass has not
// completed, optionally filtered by current category
func (s *MemoryStore) ListUnrefinedIDs(ctx context.Context, owner, category string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, email := range s.emails[owner] {
		if category != "" && email.Category != category {
			continue
		}
		if p2 := email.Classification.Phase2; p2 != nil && p2.IsComplete {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListActiveCategories returns the active categories of an owner
func (s *MemoryStore) ListActiveCategories(ctx context.Context, owner string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []core.Category
	for _, cat := range s.categories[owner] {
		if cat.IsActive {
			result = append(result, cat)
		}
	}
	return result, nil
}

// SeedCategories replaces the category rules of an owner
func (s *MemoryStore) SeedCategories(owner string, categories []core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories[owner] = append([]core.Category(nil), categories...)
}
