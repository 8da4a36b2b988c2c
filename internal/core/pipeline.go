package core

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/email-triage/internal/config"
	"go.uber.org/zap"
)

// Pipeline ties the two classification phases together: rule-based
// labelling at ingestion, then deferred ML refinement through the job
// queue. Thread listing runs over the same store independently.
type Pipeline struct {
	phase1 *Phase1Classifier
	emails EmailStore
	queue  Enqueuer
	cfg    config.Phase2Config
	logger *zap.Logger
}

// NewPipeline creates a new triage pipeline
func NewPipeline(
	phase1 *Phase1Classifier,
	emails EmailStore,
	queue Enqueuer,
	cfg config.Phase2Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		phase1: phase1,
		emails: emails,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
	}
}

// IngestEmail classifies a new email with the rule-based pass, persists it
// and schedules the refinement job. Classification trouble never blocks
// ingestion; only the persist step can fail.
func (p *Pipeline) IngestEmail(ctx context.Context, email *Email) (*Email, error) {
	result := p.phase1.Classify(ctx, email)

	email.Category = result.Label
	email.Classification = Classification{
		Label:        result.Label,
		Confidence:   result.Confidence,
		Phase:        1,
		Phase1:       &result,
		ClassifiedAt: result.ClassifiedAt,
	}

	if err := p.emails.SaveEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to persist email: %w", err)
	}

	if p.cfg.Enabled {
		p.queue.Enqueue(email.ID, email.Owner, p.cfg.Delay)
	}

	p.logger.Debug("Email ingested",
		zap.String("email_id", email.ID),
		zap.String("owner", email.Owner),
		zap.String("category", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.String("method", result.Method))

	return email, nil
}

// RefineAll enqueues every email of an owner whose phase 2 pass has not
// completed, optionally filtered by current category. Returns the number
// of jobs queued.
func (p *Pipeline) RefineAll(ctx context.Context, owner, category string) (int, error) {
	ids, err := p.emails.ListUnrefinedIDs(ctx, owner, category)
	if err != nil {
		return 0, fmt.Errorf("failed to list unrefined emails: %w", err)
	}

	entries := make([]QueuedEmail, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, QueuedEmail{EmailID: id, Owner: owner})
	}
	queued := p.queue.EnqueueBatch(entries, p.cfg.Delay)

	p.logger.Info("Bulk refinement queued",
		zap.String("owner", owner),
		zap.String("category", category),
		zap.Int("queued", queued))

	return queued, nil
}

// ListThreads groups the owner's emails into thread containers,
// newest-first.
func (p *Pipeline) ListThreads(ctx context.Context, owner string) ([]ThreadContainer, error) {
	emails, err := p.emails.ListEmails(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return GroupIntoThreads(emails), nil
}

// ThreadMessages returns the full ordered message list of one container.
func (p *Pipeline) ThreadMessages(ctx context.Context, owner, threadID string, day time.Time) ([]Email, error) {
	return ThreadMessages(ctx, p.emails, owner, threadID, day)
}
