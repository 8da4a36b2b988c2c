package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/email-triage/internal/config"
	"go.uber.org/zap"
)

// Classification methods reported by the rule-based pass.
const (
	MethodSender       = "phase1-sender"
	MethodSenderDomain = "phase1-sender-domain"
	MethodSenderName   = "phase1-sender-name"
	MethodKeyword      = "phase1-keyword"
	MethodDefault      = "phase1-default"
	MethodError        = "phase1-error"
)

// errNoMatch distinguishes "no category matched" from an internal fault.
// Both resolve to the fallback label, but only faults are tagged
// phase1-error.
var errNoMatch = errors.New("no category matched")

// Phase1Classifier is the synchronous rule-based classifier. It never
// performs network calls and never surfaces an error to its caller.
type Phase1Classifier struct {
	categories CategoryProvider
	cfg        config.Phase1Config
	logger     *zap.Logger
}

// NewPhase1Classifier creates a new rule-based classifier
func NewPhase1Classifier(categories CategoryProvider, cfg config.Phase1Config, logger *zap.Logger) *Phase1Classifier {
	return &Phase1Classifier{
		categories: categories,
		cfg:        cfg,
		logger:     logger,
	}
}

// Classify assigns a category to an email using the owner's rules. Any
// internal fault is converted to the fallback result tagged phase1-error.
func (c *Phase1Classifier) Classify(ctx context.Context, email *Email) PhaseResult {
	result, err := c.classify(ctx, email)
	if err == nil {
		return result
	}
	if errors.Is(err, errNoMatch) {
		return c.fallback(MethodDefault)
	}
	c.logger.Warn("Rule classification failed, using fallback",
		zap.String("email_id", email.ID),
		zap.String("owner", email.Owner),
		zap.Error(err))
	return c.fallback(MethodError)
}

func (c *Phase1Classifier) fallback(method string) PhaseResult {
	return PhaseResult{
		Label:        c.cfg.FallbackCategory,
		Confidence:   c.cfg.DefaultConfidence,
		ClassifiedAt: time.Now(),
		Method:       method,
	}
}

func (c *Phase1Classifier) classify(ctx context.Context, email *Email) (PhaseResult, error) {
	if email == nil {
		return PhaseResult{}, fmt.Errorf("nil email")
	}

	categories, err := c.categories.Categories(ctx, email.Owner)
	if err != nil {
		return PhaseResult{}, fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		return PhaseResult{}, errNoMatch
	}

	// Partition into tiers, preserving declaration order within a tier.
	tiers := map[Priority][]Category{}
	for _, cat := range categories {
		if !cat.IsActive {
			continue
		}
		p := cat.EffectivePriority()
		tiers[p] = append(tiers[p], cat)
	}

	for _, tier := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
		for _, cat := range tiers[tier] {
			match, ok := c.evaluate(&cat, email)
			if !ok {
				continue
			}
			// The high tier only accepts confident matches; normal and
			// low accept any match. Intentional tiered strictness.
			if tier == PriorityHigh && match.Confidence < c.cfg.ConfidenceThreshold {
				continue
			}
			match.ClassifiedAt = time.Now()
			return match, nil
		}
	}

	return PhaseResult{}, errNoMatch
}

// evaluate computes the best match of one category against an email.
// Precedence: specific sender, sender domain, sender name, keyword/phrase.
func (c *Phase1Classifier) evaluate(cat *Category, email *Email) (PhaseResult, bool) {
	best := PhaseResult{Label: cat.Name}
	found := false

	senderAddr, hasAddr := ExtractSenderAddress(email.From)
	senderDomain, hasDomain := ExtractSenderDomain(email.From)
	senderName := ExtractSenderName(email.From)

	if hasAddr {
		for _, s := range cat.Patterns.Senders {
			if fold(strings.TrimSpace(s)) == senderAddr {
				best.Confidence = c.cfg.SenderConfidence
				best.Method = MethodSender
				best.Evidence = []string{"sender:" + senderAddr}
				found = true
				break
			}
		}
	}

	if hasDomain && (!found || best.Confidence < c.cfg.SenderDomainConfidence) {
		for _, p := range cat.Patterns.SenderDomains {
			if MatchesDomainPattern(senderDomain, p) {
				if !found || c.cfg.SenderDomainConfidence > best.Confidence {
					best.Confidence = c.cfg.SenderDomainConfidence
					best.Method = MethodSenderDomain
					best.Evidence = []string{"domain:" + senderDomain + "~" + p}
					found = true
				}
				break
			}
		}
	}

	if !found || best.Confidence < c.cfg.SenderNameConfidence {
		for _, p := range cat.Patterns.SenderNames {
			if MatchesNamePattern(senderName, p) {
				if !found || c.cfg.SenderNameConfidence > best.Confidence {
					best.Confidence = c.cfg.SenderNameConfidence
					best.Method = MethodSenderName
					best.Evidence = []string{"name:" + p}
					found = true
				}
				break
			}
		}
	}

	if len(cat.Keywords) > 0 || len(cat.Phrases) > 0 {
		text := email.Subject + " " + email.Snippet + " " + email.Body
		kw := CountKeywordMatches(text, cat.Keywords)
		ph := CountPhraseMatches(text, cat.Phrases)
		if kw.Count+ph.Count > 0 {
			confidence := CalculateConfidence(c.cfg.KeywordConfidence, kw.Score+ph.Score)
			if !found || confidence > best.Confidence {
				best.Confidence = confidence
				best.Method = MethodKeyword
				best.Evidence = append(kw.Matched, ph.Matched...)
				found = true
			}
		}
	}

	return best, found
}
