package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/config"
)

func testPhase2Config() config.Phase2Config {
	return config.Phase2Config{
		Enabled:                        true,
		AcceptanceThreshold:            0.70,
		ConfidenceImprovementThreshold: 0.15,
	}
}

func phase1Email(id, label string, confidence float64) *Email {
	p1 := &PhaseResult{
		Label:        label,
		Confidence:   confidence,
		ClassifiedAt: time.Now(),
		Method:       MethodSenderDomain,
	}
	return &Email{
		ID:       id,
		Owner:    "alice",
		Category: label,
		Classification: Classification{
			Label:        label,
			Confidence:   confidence,
			Phase:        1,
			Phase1:       p1,
			ClassifiedAt: p1.ClassifiedAt,
		},
	}
}

func newTestRefiner(store EmailStore, ml MLClient) (*Refiner, *recordingNotifier, *recordingAnalytics) {
	notifier := &recordingNotifier{}
	analytics := &recordingAnalytics{}
	r := NewRefiner(store, ml, notifier, analytics, testPhase2Config(), zap.NewNop())
	return r, notifier, analytics
}

func TestRefineCategoryChangeOverride(t *testing.T) {
	store := newFakeEmailStore(phase1Email("e1", "Other", 0.30))
	ml := &fakeMLClient{result: &MLResult{Label: "Receipts", Confidence: 0.88, ModelVersion: "v3"}}
	refiner, notifier, analytics := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Updated)
	assert.Equal(t, ReasonCategoryChange, result.UpdateReason)

	email, err := store.GetEmail(context.Background(), "alice", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Receipts", email.Category)
	assert.Equal(t, "Receipts", email.Classification.Label)
	assert.InDelta(t, 0.88, email.Classification.Confidence, 1e-9)
	assert.Equal(t, 2, email.Classification.Phase)
	assert.Equal(t, "v3", email.Classification.ModelVersion)
	require.NotNil(t, email.Classification.Phase2)
	assert.True(t, email.Classification.Phase2.IsComplete)
	// The rule result survives as the audit trail
	require.NotNil(t, email.Classification.Phase1)
	assert.Equal(t, "Other", email.Classification.Phase1.Label)

	require.Len(t, notifier.changedEvents, 1)
	assert.Equal(t, "Other", notifier.changedEvents[0].OldLabel)
	assert.Equal(t, "Receipts", notifier.changedEvents[0].NewLabel)
	assert.Equal(t, 1, analytics.count())
}

func TestRefineNotBetterKeepsRuleLabel(t *testing.T) {
	store := newFakeEmailStore(phase1Email("e1", "Newsletters", 0.95))
	ml := &fakeMLClient{result: &MLResult{Label: "Promotions", Confidence: 0.55}}
	refiner, notifier, _ := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Updated)
	assert.Equal(t, ReasonNotBetter, result.Reason)

	email, err := store.GetEmail(context.Background(), "alice", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Newsletters", email.Category)
	assert.Equal(t, 1, email.Classification.Phase)
	// The model result is still recorded for audit
	require.NotNil(t, email.Classification.Phase2)
	assert.True(t, email.Classification.Phase2.IsComplete)
	assert.Equal(t, ReasonNotBetter, email.Classification.Phase2.Result)

	assert.Empty(t, notifier.changedEvents)
}

func TestRefineConfidenceImprovementSameLabel(t *testing.T) {
	store := newFakeEmailStore(phase1Email("e1", "Receipts", 0.77))
	ml := &fakeMLClient{result: &MLResult{Label: "Receipts", Confidence: 0.93}}
	refiner, _, _ := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, ReasonConfidenceImprovement, result.UpdateReason)
}

func TestRefineSameLabelSmallImprovementNotBetter(t *testing.T) {
	store := newFakeEmailStore(phase1Email("e1", "Receipts", 0.82))
	ml := &fakeMLClient{result: &MLResult{Label: "Receipts", Confidence: 0.90}}
	refiner, _, _ := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, ReasonNotBetter, result.Reason)
}

func TestRefineLowConfidenceImprovement(t *testing.T) {
	// Different label, model below the acceptance threshold, but the rule
	// pass was weaker still.
	store := newFakeEmailStore(phase1Email("e1", "Other", 0.30))
	ml := &fakeMLClient{result: &MLResult{Label: "Promotions", Confidence: 0.55}}
	refiner, _, _ := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, ReasonLowConfidence, result.UpdateReason)
}

func TestRefineAlreadyProcessedIsIdempotent(t *testing.T) {
	email := phase1Email("e1", "Receipts", 0.77)
	email.Classification.Phase2 = &PhaseResult{
		Label:      "Receipts",
		IsComplete: true,
	}
	store := newFakeEmailStore(email)
	ml := &fakeMLClient{result: &MLResult{Label: "Promotions", Confidence: 0.99}}
	refiner, _, _ := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Updated)
	assert.Equal(t, ReasonAlreadyProcessed, result.Reason)
	assert.Zero(t, ml.calls)
}

func TestRefineMissingEmailSucceeds(t *testing.T) {
	store := newFakeEmailStore()
	refiner, _, _ := newTestRefiner(store, &fakeMLClient{})

	result, err := refiner.Refine(context.Background(), "ghost", "alice")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, ReasonEmailNotFound, result.Reason)
}

func TestRefineMLFailureIsTerminal(t *testing.T) {
	store := newFakeEmailStore(phase1Email("e1", "Other", 0.30))
	ml := &fakeMLClient{err: errors.New("model unavailable")}
	refiner, _, _ := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.Equal(t, ReasonMLFailed, result.Reason)

	// The failure is persisted so the email is never re-refined
	email, err := store.GetEmail(context.Background(), "alice", "e1")
	require.NoError(t, err)
	require.NotNil(t, email.Classification.Phase2)
	assert.True(t, email.Classification.Phase2.IsComplete)
	assert.Equal(t, "failed", email.Classification.Phase2.Result)
	assert.Equal(t, "Other", email.Category)

	// A second attempt short-circuits without calling the model again
	result, err = refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.Equal(t, ReasonAlreadyProcessed, result.Reason)
	assert.Equal(t, 1, ml.calls)
}

func TestRefineStoreErrorIsRetryable(t *testing.T) {
	store := newFakeEmailStore(phase1Email("e1", "Other", 0.30))
	store.getErr = errors.New("connection reset")
	refiner, _, _ := newTestRefiner(store, &fakeMLClient{})

	_, err := refiner.Refine(context.Background(), "e1", "alice")
	assert.Error(t, err)
}

func TestRefineLegacyEmailWithoutPhase1Block(t *testing.T) {
	email := &Email{
		ID:       "e1",
		Owner:    "alice",
		Category: "Other",
		Classification: Classification{
			Label:      "Other",
			Confidence: 0.30,
			Phase:      1,
		},
	}
	store := newFakeEmailStore(email)
	ml := &fakeMLClient{result: &MLResult{Label: "Receipts", Confidence: 0.90}}
	refiner, _, _ := newTestRefiner(store, ml)

	result, err := refiner.Refine(context.Background(), "e1", "alice")
	require.NoError(t, err)
	assert.True(t, result.Updated)
	require.NotNil(t, result.Phase1)
	assert.Equal(t, "Other", result.Phase1.Label)
}
