package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/config"
)

func testPhase1Config() config.Phase1Config {
	return config.Phase1Config{
		ConfidenceThreshold:    0.75,
		FallbackCategory:       "Other",
		DefaultConfidence:      0.30,
		SenderConfidence:       0.98,
		SenderDomainConfidence: 0.95,
		SenderNameConfidence:   0.90,
		KeywordConfidence:      0.75,
	}
}

func newTestClassifier(categories []Category) *Phase1Classifier {
	return NewPhase1Classifier(
		&fakeCategoryProvider{categories: categories},
		testPhase1Config(),
		zap.NewNop(),
	)
}

func TestClassifyBySenderDomain(t *testing.T) {
	classifier := newTestClassifier([]Category{
		{
			ID:       "cat-1",
			Name:     "Newsletters",
			Priority: PriorityNormal,
			IsActive: true,
			Patterns: CategoryPatterns{SenderDomains: []string{"*.substack.com"}},
		},
	})

	result := classifier.Classify(context.Background(), &Email{
		ID:    "e1",
		Owner: "alice",
		From:  "Daily News <digest@news.substack.com>",
	})

	assert.Equal(t, "Newsletters", result.Label)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.Equal(t, MethodSenderDomain, result.Method)
	require.Len(t, result.Evidence, 1)
	assert.Contains(t, result.Evidence[0], "news.substack.com")
}

func TestClassifySpecificSenderBeatsDomain(t *testing.T) {
	classifier := newTestClassifier([]Category{
		{
			ID:       "cat-1",
			Name:     "Work",
			Priority: PriorityNormal,
			IsActive: true,
			Patterns: CategoryPatterns{
				Senders:       []string{"boss@corp.example.com"},
				SenderDomains: []string{"corp.example.com"},
			},
		},
	})

	result := classifier.Classify(context.Background(), &Email{
		From: "Boss <boss@corp.example.com>",
	})

	assert.Equal(t, MethodSender, result.Method)
	assert.InDelta(t, 0.98, result.Confidence, 1e-9)
}

func TestClassifyByKeywords(t *testing.T) {
	classifier := newTestClassifier([]Category{
		{
			ID:       "cat-1",
			Name:     "Receipts",
			Priority: PriorityNormal,
			IsActive: true,
			Keywords: []string{"invoice", "receipt"},
			Phrases:  []string{"order confirmation"},
		},
	})

	result := classifier.Classify(context.Background(), &Email{
		From:    "shop@store.example.org",
		Subject: "Your order confirmation",
		Body:    "The invoice for your purchase is attached.",
	})

	assert.Equal(t, "Receipts", result.Label)
	assert.Equal(t, MethodKeyword, result.Method)
	// base 0.75 + (1.5 keyword + 2.0 phrase) * 0.02 = 0.82
	assert.InDelta(t, 0.82, result.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"invoice", "order confirmation"}, result.Evidence)
}

func TestClassifyNoMatchFallsBack(t *testing.T) {
	classifier := newTestClassifier([]Category{
		{
			ID:       "cat-1",
			Name:     "Newsletters",
			Priority: PriorityNormal,
			IsActive: true,
			Patterns: CategoryPatterns{SenderDomains: []string{"*.substack.com"}},
		},
	})

	result := classifier.Classify(context.Background(), &Email{
		From:    "stranger@unknown.example.net",
		Subject: "hello",
	})

	assert.Equal(t, "Other", result.Label)
	assert.InDelta(t, 0.30, result.Confidence, 1e-9)
	assert.Equal(t, MethodDefault, result.Method)
}

func TestClassifyProviderErrorUsesErrorMethod(t *testing.T) {
	classifier := NewPhase1Classifier(
		&fakeCategoryProvider{err: errors.New("store down")},
		testPhase1Config(),
		zap.NewNop(),
	)

	result := classifier.Classify(context.Background(), &Email{From: "a@b.com"})

	assert.Equal(t, "Other", result.Label)
	assert.Equal(t, MethodError, result.Method)
}

func TestClassifyInactiveCategoryIgnored(t *testing.T) {
	classifier := newTestClassifier([]Category{
		{
			ID:       "cat-1",
			Name:     "Disabled",
			Priority: PriorityHigh,
			IsActive: false,
			Patterns: CategoryPatterns{Senders: []string{"a@b.com"}},
		},
	})

	result := classifier.Classify(context.Background(), &Email{From: "a@b.com"})
	assert.Equal(t, "Other", result.Label)
}

func TestClassifyHighTierRequiresConfidentMatch(t *testing.T) {
	cfg := testPhase1Config()
	cfg.SenderNameConfidence = 0.60 // below the 0.75 threshold

	categories := []Category{
		{
			ID:       "high",
			Name:     "Urgent",
			Priority: PriorityHigh,
			IsActive: true,
			Patterns: CategoryPatterns{SenderNames: []string{"alerts"}},
		},
		{
			ID:       "normal",
			Name:     "Monitoring",
			Priority: PriorityNormal,
			IsActive: true,
			Patterns: CategoryPatterns{SenderNames: []string{"alerts"}},
		},
	}

	classifier := NewPhase1Classifier(
		&fakeCategoryProvider{categories: categories},
		cfg,
		zap.NewNop(),
	)

	result := classifier.Classify(context.Background(), &Email{
		From: "Alerts <noreply@monitor.example.com>",
	})

	// The weak match is rejected in the high tier but the same match is
	// accepted in the normal tier.
	assert.Equal(t, "Monitoring", result.Label)
	assert.InDelta(t, 0.60, result.Confidence, 1e-9)
}

func TestClassifyTierOrdering(t *testing.T) {
	classifier := newTestClassifier([]Category{
		{
			ID:       "low",
			Name:     "LowTier",
			Priority: PriorityLow,
			IsActive: true,
			Patterns: CategoryPatterns{SenderDomains: []string{"example.com"}},
		},
		{
			ID:       "high",
			Name:     "HighTier",
			Priority: PriorityHigh,
			IsActive: true,
			Patterns: CategoryPatterns{SenderDomains: []string{"example.com"}},
		},
	})

	result := classifier.Classify(context.Background(), &Email{From: "x@example.com"})

	// High tier wins even though the low tier category is declared first.
	assert.Equal(t, "HighTier", result.Label)
}

func TestClassifyDeclarationOrderWithinTier(t *testing.T) {
	classifier := newTestClassifier([]Category{
		{
			ID:       "first",
			Name:     "First",
			Priority: PriorityNormal,
			IsActive: true,
			Patterns: CategoryPatterns{SenderDomains: []string{"example.com"}},
		},
		{
			ID:       "second",
			Name:     "Second",
			Priority: PriorityNormal,
			IsActive: true,
			Patterns: CategoryPatterns{SenderDomains: []string{"example.com"}},
		},
	})

	result := classifier.Classify(context.Background(), &Email{From: "x@example.com"})
	assert.Equal(t, "First", result.Label)
}
