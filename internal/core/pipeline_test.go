package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/config"
)

type recordingEnqueuer struct {
	ids    []string
	owners []string
	delays []time.Duration
}

func (e *recordingEnqueuer) Enqueue(emailID, owner string, delay time.Duration) bool {
	e.ids = append(e.ids, emailID)
	e.owners = append(e.owners, owner)
	e.delays = append(e.delays, delay)
	return true
}

func (e *recordingEnqueuer) EnqueueBatch(entries []QueuedEmail, delay time.Duration) int {
	for _, entry := range entries {
		e.Enqueue(entry.EmailID, entry.Owner, delay)
	}
	return len(entries)
}

func newTestPipeline(store EmailStore, categories []Category, cfg config.Phase2Config) (*Pipeline, *recordingEnqueuer) {
	queue := &recordingEnqueuer{}
	phase1 := NewPhase1Classifier(&fakeCategoryProvider{categories: categories}, testPhase1Config(), zap.NewNop())
	return NewPipeline(phase1, store, queue, cfg, zap.NewNop()), queue
}

func TestIngestEmailClassifiesPersistsAndEnqueues(t *testing.T) {
	store := newFakeEmailStore()
	categories := []Category{{
		ID:       "cat-1",
		Name:     "Newsletters",
		Priority: PriorityNormal,
		IsActive: true,
		Patterns: CategoryPatterns{SenderDomains: []string{"*.substack.com"}},
	}}
	cfg := config.Phase2Config{Enabled: true, Delay: 5 * time.Second}
	pipeline, queue := newTestPipeline(store, categories, cfg)

	email, err := pipeline.IngestEmail(context.Background(), &Email{
		ID:    "e1",
		Owner: "alice",
		From:  "digest@news.substack.com",
		Date:  time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Newsletters", email.Category)
	assert.Equal(t, 1, email.Classification.Phase)
	require.NotNil(t, email.Classification.Phase1)

	stored, err := store.GetEmail(context.Background(), "alice", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Newsletters", stored.Category)

	require.Len(t, queue.ids, 1)
	assert.Equal(t, "e1", queue.ids[0])
	assert.Equal(t, 5*time.Second, queue.delays[0])
}

func TestIngestEmailSkipsQueueWhenRefinementDisabled(t *testing.T) {
	store := newFakeEmailStore()
	pipeline, queue := newTestPipeline(store, nil, config.Phase2Config{Enabled: false})

	_, err := pipeline.IngestEmail(context.Background(), &Email{ID: "e1", Owner: "alice", From: "a@b.com"})
	require.NoError(t, err)
	assert.Empty(t, queue.ids)
}

func TestIngestEmailPersistFailure(t *testing.T) {
	store := newFakeEmailStore()
	store.saveErr = assert.AnError
	pipeline, queue := newTestPipeline(store, nil, config.Phase2Config{Enabled: true})

	_, err := pipeline.IngestEmail(context.Background(), &Email{ID: "e1", Owner: "alice", From: "a@b.com"})
	assert.Error(t, err)
	assert.Empty(t, queue.ids)
}

func TestRefineAllQueuesUnrefinedEmails(t *testing.T) {
	refined := phase1Email("done", "Receipts", 0.9)
	refined.Classification.Phase2 = &PhaseResult{IsComplete: true}
	store := newFakeEmailStore(
		phase1Email("e1", "Other", 0.3),
		phase1Email("e2", "Other", 0.3),
		refined,
	)
	pipeline, queue := newTestPipeline(store, nil, config.Phase2Config{Enabled: true})

	queued, err := pipeline.RefineAll(context.Background(), "alice", "")
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	assert.ElementsMatch(t, []string{"e1", "e2"}, queue.ids)
}

func TestRefineAllFiltersByCategory(t *testing.T) {
	store := newFakeEmailStore(
		phase1Email("e1", "Other", 0.3),
		phase1Email("e2", "Newsletters", 0.95),
	)
	pipeline, queue := newTestPipeline(store, nil, config.Phase2Config{Enabled: true})

	queued, err := pipeline.RefineAll(context.Background(), "alice", "Other")
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
	assert.Equal(t, []string{"e1"}, queue.ids)
}

func TestListThreadsGroupsOwnerEmails(t *testing.T) {
	store := newFakeEmailStore(
		&Email{ID: "m1", Owner: "alice", ThreadID: "t1", Date: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)},
		&Email{ID: "m2", Owner: "alice", ThreadID: "t1", Date: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)},
		&Email{ID: "m3", Owner: "bob", ThreadID: "t1", Date: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)},
	)
	pipeline, _ := newTestPipeline(store, nil, config.Phase2Config{})

	threads, err := pipeline.ListThreads(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 2, threads[0].MessageCount)
}
