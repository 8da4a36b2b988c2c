package notify

import (
	"context"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// LogNotifier writes pipeline events to the application log. Useful for
// development and as the default sink.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// BatchComplete logs a batch completion event
func (n *LogNotifier) BatchComplete(ctx context.Context, owner string, ev core.BatchCompleteEvent) {
	n.logger.Info("Refinement batch complete",
		zap.String("owner", owner),
		zap.Int("batch_number", ev.BatchNumber),
		zap.Int("processed", ev.Processed),
		zap.Any("changes", ev.Changes),
		zap.Int("total_processed", ev.TotalProcessed),
		zap.Int("total_failed", ev.TotalFailed),
		zap.Float64("percent_complete", ev.PercentComplete))
}

// CategoryChanged logs a category change event
func (n *LogNotifier) CategoryChanged(ctx context.Context, owner string, ev core.CategoryChangedEvent) {
	n.logger.Info("Category changed by refinement",
		zap.String("owner", owner),
		zap.String("email_id", ev.EmailID),
		zap.String("old_label", ev.OldLabel),
		zap.String("new_label", ev.NewLabel),
		zap.Float64("confidence", ev.Confidence),
		zap.String("reason", ev.Reason))
}
