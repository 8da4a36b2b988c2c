package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/email-triage/internal/config"
	"go.uber.org/zap"
)

// MethodML tags classification results produced by the external model.
const MethodML = "phase2-ml"

// Override reasons, evaluated in order.
const (
	ReasonCategoryChange        = "category_change_high_confidence"
	ReasonConfidenceImprovement = "confidence_improvement"
	ReasonLowConfidence         = "low_confidence_improvement"
	ReasonNotBetter             = "not_better"
	ReasonAlreadyProcessed      = "already_processed"
	ReasonEmailNotFound         = "email_not_found"
	ReasonMLFailed              = "ml_failed"
)

// Refiner performs the asynchronous ML-backed second classification pass.
type Refiner struct {
	emails    EmailStore
	ml        MLClient
	notifier  Notifier
	analytics AnalyticsCache
	cfg       config.Phase2Config
	logger    *zap.Logger
}

// NewRefiner creates a new phase 2 refiner
func NewRefiner(
	emails EmailStore,
	ml MLClient,
	notifier Notifier,
	analytics AnalyticsCache,
	cfg config.Phase2Config,
	logger *zap.Logger,
) *Refiner {
	return &Refiner{
		emails:    emails,
		ml:        ml,
		notifier:  notifier,
		analytics: analytics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Refine runs the ML classifier over one email and decides whether its
// result overrides the rule-based label. A returned error means a transient
// infrastructure failure the queue may retry; everything else resolves to a
// result with a reason code.
func (r *Refiner) Refine(ctx context.Context, emailID, owner string) (*RefineResult, error) {
	email, err := r.emails.GetEmail(ctx, owner, emailID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Warn("Email disappeared before refinement",
				zap.String("email_id", emailID),
				zap.String("owner", owner))
			return &RefineResult{Success: true, Reason: ReasonEmailNotFound}, nil
		}
		return nil, fmt.Errorf("failed to load email: %w", err)
	}

	cls := email.Classification
	if cls.Phase2 != nil && cls.Phase2.IsComplete {
		return &RefineResult{
			Success: true,
			Phase1:  cls.Phase1,
			Phase2:  cls.Phase2,
			Reason:  ReasonAlreadyProcessed,
		}, nil
	}

	phase1 := cls.Phase1
	if phase1 == nil {
		// Emails ingested before the two-phase split only carry the
		// top-level label.
		phase1 = &PhaseResult{
			Label:        cls.Label,
			Confidence:   cls.Confidence,
			ClassifiedAt: cls.ClassifiedAt,
			Method:       MethodDefault,
		}
	}

	mlResult, err := r.ml.ClassifyEmail(ctx, email)
	if err != nil {
		// A failed model call is terminal for this email: record the
		// failure so the job is not retried forever. Only the persist
		// failure itself stays retryable.
		r.logger.Warn("ML classification failed",
			zap.String("email_id", emailID),
			zap.String("owner", owner),
			zap.Error(err))
		cls.Phase2 = &PhaseResult{
			ClassifiedAt: time.Now(),
			Method:       MethodML,
			IsComplete:   true,
			Result:       "failed",
			Error:        err.Error(),
		}
		if perr := r.emails.UpdateClassification(ctx, owner, emailID, email.Category, cls); perr != nil {
			return nil, fmt.Errorf("failed to persist ML failure: %w", perr)
		}
		return &RefineResult{Phase1: phase1, Phase2: cls.Phase2, Reason: ReasonMLFailed}, nil
	}

	phase2 := &PhaseResult{
		Label:        mlResult.Label,
		Confidence:   mlResult.Confidence,
		ClassifiedAt: time.Now(),
		Method:       MethodML,
		IsComplete:   true,
	}

	override, reason := r.decide(phase1, phase2)
	if !override {
		phase2.Result = ReasonNotBetter
		cls.Phase2 = phase2
		if err := r.emails.UpdateClassification(ctx, owner, emailID, email.Category, cls); err != nil {
			return nil, fmt.Errorf("failed to persist audit block: %w", err)
		}
		return &RefineResult{
			Success: true,
			Phase1:  phase1,
			Phase2:  phase2,
			Reason:  ReasonNotBetter,
		}, nil
	}

	phase2.UpdateReason = reason
	oldLabel := cls.Label
	cls.Label = phase2.Label
	cls.Confidence = phase2.Confidence
	cls.Phase = 2
	cls.Phase2 = phase2
	cls.ModelVersion = mlResult.ModelVersion
	cls.ClassifiedAt = phase2.ClassifiedAt

	if err := r.emails.UpdateClassification(ctx, owner, emailID, phase2.Label, cls); err != nil {
		return nil, fmt.Errorf("failed to persist refined classification: %w", err)
	}

	r.notifier.CategoryChanged(ctx, owner, CategoryChangedEvent{
		EmailID:     emailID,
		OldLabel:    oldLabel,
		NewLabel:    phase2.Label,
		Confidence:  phase2.Confidence,
		Improvement: phase2.Confidence - phase1.Confidence,
		Reason:      reason,
	})
	if err := r.analytics.Invalidate(ctx, owner); err != nil {
		r.logger.Warn("Failed to invalidate analytics cache",
			zap.String("owner", owner),
			zap.Error(err))
	}

	return &RefineResult{
		Success:      true,
		Updated:      true,
		Phase1:       phase1,
		Phase2:       phase2,
		UpdateReason: reason,
	}, nil
}

// decide applies the override decision rule balancing the two confidence
// estimates.
func (r *Refiner) decide(phase1, phase2 *PhaseResult) (bool, string) {
	switch {
	case phase2.Label != phase1.Label && phase2.Confidence >= r.cfg.AcceptanceThreshold:
		return true, ReasonCategoryChange
	case phase2.Label == phase1.Label &&
		phase2.Confidence-phase1.Confidence >= r.cfg.ConfidenceImprovementThreshold:
		return true, ReasonConfidenceImprovement
	case phase1.Confidence < r.cfg.AcceptanceThreshold && phase2.Confidence > phase1.Confidence:
		return true, ReasonLowConfidence
	default:
		return false, ""
	}
}
