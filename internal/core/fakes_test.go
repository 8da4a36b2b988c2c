package core

import (
	"context"
	"sync"
	"time"
)

// Test doubles shared by the core tests.

type fakeCategoryProvider struct {
	categories []Category
	err        error
}

func (f *fakeCategoryProvider) Categories(_ context.Context, _ string) ([]Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.categories, nil
}

func (f *fakeCategoryProvider) Invalidate(_ string) {}

type fakeEmailStore struct {
	mu      sync.Mutex
	emails  map[string]*Email
	saveErr error
	getErr  error
	updErr  error
	updates int
}

func newFakeEmailStore(emails ...*Email) *fakeEmailStore {
	s := &fakeEmailStore{emails: make(map[string]*Email)}
	for _, e := range emails {
		s.emails[e.ID] = e
	}
	return s
}

func (s *fakeEmailStore) SaveEmail(_ context.Context, email *Email) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[email.ID] = email
	return nil
}

func (s *fakeEmailStore) GetEmail(_ context.Context, _, id string) (*Email, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.emails[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *email
	return &cp, nil
}

func (s *fakeEmailStore) UpdateClassification(_ context.Context, _, id, category string, cls Classification) error {
	if s.updErr != nil {
		return s.updErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.emails[id]
	if !ok {
		return ErrNotFound
	}
	email.Category = category
	email.Classification = cls
	s.updates++
	return nil
}

func (s *fakeEmailStore) ListEmails(_ context.Context, owner string) ([]Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Email
	for _, e := range s.emails {
		if e.Owner == owner {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeEmailStore) ListThreadMessages(_ context.Context, owner, threadID string, from, to time.Time) ([]Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Email
	for _, e := range s.emails {
		tid := e.ThreadID
		if tid == "" {
			tid = e.ID
		}
		if e.Owner == owner && tid == threadID && !e.Date.Before(from) && e.Date.Before(to) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeEmailStore) ListUnrefinedIDs(_ context.Context, owner, category string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.emails {
		if e.Owner != owner {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		if e.Classification.Phase2 == nil || !e.Classification.Phase2.IsComplete {
			out = append(out, e.ID)
		}
	}
	return out, nil
}

type fakeMLClient struct {
	result *MLResult
	err    error
	calls  int
}

func (f *fakeMLClient) ClassifyEmail(_ context.Context, _ *Email) (*MLResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type recordingNotifier struct {
	mu            sync.Mutex
	batchEvents   []BatchCompleteEvent
	batchOwners   []string
	changedEvents []CategoryChangedEvent
}

func (n *recordingNotifier) BatchComplete(_ context.Context, owner string, ev BatchCompleteEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batchEvents = append(n.batchEvents, ev)
	n.batchOwners = append(n.batchOwners, owner)
}

func (n *recordingNotifier) CategoryChanged(_ context.Context, _ string, ev CategoryChangedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changedEvents = append(n.changedEvents, ev)
}

type recordingAnalytics struct {
	mu     sync.Mutex
	owners []string
}

func (a *recordingAnalytics) Invalidate(_ context.Context, owner string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.owners = append(a.owners, owner)
	return nil
}

func (a *recordingAnalytics) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.owners)
}

// fakeRefiner lets queue tests script per-email outcomes.
type fakeRefiner struct {
	mu      sync.Mutex
	calls   map[string]int
	outcome func(emailID string, attempt int) (*RefineResult, error)
}

func newFakeRefiner(outcome func(emailID string, attempt int) (*RefineResult, error)) *fakeRefiner {
	return &fakeRefiner{calls: make(map[string]int), outcome: outcome}
}

func (f *fakeRefiner) Refine(_ context.Context, emailID, _ string) (*RefineResult, error) {
	f.mu.Lock()
	f.calls[emailID]++
	attempt := f.calls[emailID]
	f.mu.Unlock()
	if f.outcome == nil {
		return &RefineResult{Success: true}, nil
	}
	return f.outcome(emailID, attempt)
}

func (f *fakeRefiner) callCount(emailID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[emailID]
}
