package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = errors.New("not found")

// MLClient defines the interface for the external ML classifier.
type MLClient interface {
	// ClassifyEmail assigns a category label and confidence to an email
	ClassifyEmail(ctx context.Context, email *Email) (*MLResult, error)
}

// EmailStore defines atomic per-document access to stored emails.
type EmailStore interface {
	// SaveEmail inserts or replaces an email
	SaveEmail(ctx context.Context, email *Email) error

	// GetEmail retrieves one email by owner and id
	GetEmail(ctx context.Context, owner, id string) (*Email, error)

	// UpdateClassification atomically writes the category and
	// classification state of one email
	UpdateClassification(ctx context.Context, owner, id, category string, cls Classification) error

	// ListEmails returns all emails of an owner
	ListEmails(ctx context.Context, owner string) ([]Email, error)

	// ListThreadMessages returns the messages of one thread whose date
	// falls within [from, to), ordered chronologically
	ListThreadMessages(ctx context.Context, owner, threadID string, from, to time.Time) ([]Email, error)

	// ListUnrefinedIDs returns the ids of emails whose phase 2 pass has
	// not completed, optionally filtered by current category
	ListUnrefinedIDs(ctx context.Context, owner, category string) ([]string, error)
}

// CategoryStore defines access to the category rules of an owner.
type CategoryStore interface {
	// ListActiveCategories returns the active categories of an owner
	ListActiveCategories(ctx context.Context, owner string) ([]Category, error)
}

// CategoryProvider serves category rules to the classifier, typically from
// a TTL cache in front of a CategoryStore.
type CategoryProvider interface {
	// Categories returns the active categories of an owner
	Categories(ctx context.Context, owner string) ([]Category, error)

	// Invalidate drops the cached rules of an owner
	Invalidate(owner string)
}

// Notifier delivers owner-scoped pipeline events. Implementations are
// fire-and-forget: failures are logged and swallowed.
type Notifier interface {
	BatchComplete(ctx context.Context, owner string, ev BatchCompleteEvent)
	CategoryChanged(ctx context.Context, owner string, ev CategoryChangedEvent)
}

// AnalyticsCache invalidates derived per-owner analytics when a
// classification changes.
type AnalyticsCache interface {
	Invalidate(ctx context.Context, owner string) error
}

// RefineFunc performs one phase 2 refinement. A returned error marks the
// job transiently failed and eligible for retry; terminal ML failures are
// reported through the result instead.
type RefineFunc interface {
	Refine(ctx context.Context, emailID, owner string) (*RefineResult, error)
}

// Enqueuer schedules emails for phase 2 refinement.
type Enqueuer interface {
	// Enqueue schedules one email after the given delay; duplicate ids
	// are dropped and reported false
	Enqueue(emailID, owner string, delay time.Duration) bool

	// EnqueueBatch schedules each entry in order and returns the number
	// actually queued
	EnqueueBatch(entries []QueuedEmail, delay time.Duration) int
}
