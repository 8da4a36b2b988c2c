package core

import (
	"time"
)

// Priority controls the order in which categories are evaluated by the
// rule-based classifier.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// CategoryPatterns holds the sender-based matching rules of a category.
type CategoryPatterns struct {
	Senders       []string `json:"senders,omitempty"`
	SenderDomains []string `json:"senderDomains,omitempty"`
	SenderNames   []string `json:"senderNames,omitempty"`
}

// Category is a per-owner classification rule. Read-mostly and served
// through the TTL category cache.
type Category struct {
	ID       string           `json:"id"`
	Owner    string           `json:"owner"`
	Name     string           `json:"name"`
	Priority Priority         `json:"priority"`
	Patterns CategoryPatterns `json:"patterns"`
	Keywords []string         `json:"keywords,omitempty"`
	Phrases  []string         `json:"phrases,omitempty"`
	IsActive bool             `json:"isActive"`
}

// EffectivePriority returns the category priority, defaulting to normal.
func (c *Category) EffectivePriority() Priority {
	switch c.Priority {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return c.Priority
	default:
		return PriorityNormal
	}
}

// PhaseResult records the outcome of one classification phase. For phase 2
// it doubles as the audit block: IsComplete is monotonic and never reset.
type PhaseResult struct {
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	ClassifiedAt time.Time `json:"classifiedAt"`
	Method       string    `json:"method"`
	Evidence     []string  `json:"evidence,omitempty"`
	IsComplete   bool      `json:"isComplete,omitempty"`
	UpdateReason string    `json:"updateReason,omitempty"`
	Result       string    `json:"result,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Classification is the classification state of an email. Phase 1 writes it
// once at ingestion; phase 2 rewrites it at most once.
type Classification struct {
	Label        string       `json:"label"`
	Confidence   float64      `json:"confidence"`
	Phase        int          `json:"phase"`
	Phase1       *PhaseResult `json:"phase1,omitempty"`
	Phase2       *PhaseResult `json:"phase2,omitempty"`
	ModelVersion string       `json:"modelVersion,omitempty"`
	ClassifiedAt time.Time    `json:"classifiedAt"`
}

// Email is a stored message with its classification fields.
type Email struct {
	ID             string
	Owner          string
	ThreadID       string
	Subject        string
	From           string
	Snippet        string
	Body           string
	Date           time.Time
	IsRead         bool
	IsArchived     bool
	Category       string
	Classification Classification
}

// Job is a deferred unit of phase 2 work. Jobs exist only in process memory
// and are owned exclusively by the job queue.
type Job struct {
	EmailID      string
	Owner        string
	QueuedAt     time.Time
	ProcessAfter time.Time
	Retries      int
}

// QueuedEmail identifies one email to enqueue for refinement.
type QueuedEmail struct {
	EmailID string
	Owner   string
}

// QueueStats is a snapshot of the job queue counters.
type QueueStats struct {
	TotalQueued      int
	TotalProcessed   int
	TotalFailed      int
	CurrentQueueSize int
	Running          bool
	Paused           bool
}

// MLResult is the response of the external ML classifier.
type MLResult struct {
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version,omitempty"`
}

// RefineResult is the outcome of one phase 2 refinement.
type RefineResult struct {
	Success      bool
	Updated      bool
	Phase1       *PhaseResult
	Phase2       *PhaseResult
	Reason       string
	UpdateReason string
}

// BatchCompleteEvent is emitted once per owner after each processed batch.
type BatchCompleteEvent struct {
	BatchNumber     int            `json:"batch_number"`
	Processed       int            `json:"processed"`
	Changes         map[string]int `json:"changes,omitempty"`
	TotalProcessed  int            `json:"total_processed"`
	TotalFailed     int            `json:"total_failed"`
	Remaining       int            `json:"remaining"`
	PercentComplete float64        `json:"percent_complete"`
}

// CategoryChangedEvent is emitted when phase 2 overrides the phase 1 label.
type CategoryChangedEvent struct {
	EmailID     string  `json:"email_id"`
	OldLabel    string  `json:"old_label"`
	NewLabel    string  `json:"new_label"`
	Confidence  float64 `json:"confidence"`
	Improvement float64 `json:"improvement"`
	Reason      string  `json:"reason"`
}

// ThreadContainer is a derived, non-persisted grouping of the messages that
// share a conversation id and calendar day. Recomputed per list request.
type ThreadContainer struct {
	ContainerID  string
	ThreadID     string
	MessageIDs   []string
	MessageCount int
	LatestDate   time.Time
	Subject      string
	From         string
	Snippet      string
	Category     string
	IsRead       bool
	IsArchived   bool
}
