package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/core"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	email := &core.Email{ID: "e1", Owner: "alice", Subject: "hello"}
	require.NoError(t, store.SaveEmail(ctx, email))

	got, err := store.GetEmail(ctx, "alice", "e1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Subject)

	// Stored copy is isolated from the caller's struct
	email.Subject = "mutated"
	got, err = store.GetEmail(ctx, "alice", "e1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Subject)

	_, err = store.GetEmail(ctx, "bob", "e1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStoreUpdateClassification(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "e1", Owner: "alice", Category: "Other"}))

	cls := core.Classification{Label: "Receipts", Confidence: 0.9, Phase: 2}
	require.NoError(t, store.UpdateClassification(ctx, "alice", "e1", "Receipts", cls))

	got, err := store.GetEmail(ctx, "alice", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Receipts", got.Category)
	assert.Equal(t, 2, got.Classification.Phase)

	err = store.UpdateClassification(ctx, "alice", "missing", "X", cls)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStoreListThreadMessages(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "m2", Owner: "alice", ThreadID: "t1", Date: base.Add(12 * time.Hour)}))
	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "m1", Owner: "alice", ThreadID: "t1", Date: base.Add(2 * time.Hour)}))
	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "m3", Owner: "alice", ThreadID: "t1", Date: base.Add(24 * time.Hour)}))
	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "other", Owner: "alice", ThreadID: "t2", Date: base}))

	messages, err := store.ListThreadMessages(ctx, "alice", "t1", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)
}

func TestMemoryStoreThreadlessEmailKeyedByOwnID(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	date := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "solo", Owner: "alice", Date: date}))

	messages, err := store.ListThreadMessages(ctx, "alice", "solo", date.Add(-time.Hour), date.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestMemoryStoreListUnrefinedIDs(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "pending", Owner: "alice", Category: "Other"}))
	require.NoError(t, store.SaveEmail(ctx, &core.Email{
		ID: "done", Owner: "alice", Category: "Other",
		Classification: core.Classification{Phase2: &core.PhaseResult{IsComplete: true}},
	}))
	require.NoError(t, store.SaveEmail(ctx, &core.Email{ID: "filtered", Owner: "alice", Category: "Newsletters"}))

	ids, err := store.ListUnrefinedIDs(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"filtered", "pending"}, ids)

	ids, err = store.ListUnrefinedIDs(ctx, "alice", "Other")
	require.NoError(t, err)
	assert.Equal(t, []string{"pending"}, ids)
}

func TestMemoryStoreActiveCategories(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	store.SeedCategories("alice", []core.Category{
		{ID: "c1", Name: "Receipts", IsActive: true},
		{ID: "c2", Name: "Disabled", IsActive: false},
	})

	categories, err := store.ListActiveCategories(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Receipts", categories[0].Name)
}
