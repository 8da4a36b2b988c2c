package ports

import (
	"context"

	"github.com/mikey/email-triage/internal/core"
)

// Ingestor defines the interface for email ingestion surfaces
type Ingestor interface {
	// IngestEmail runs one email through the triage pipeline
	IngestEmail(ctx context.Context, email *core.Email) (*core.Email, error)

	// Start starts the ingestion service
	Start() error

	// Stop stops the ingestion service
	Stop() error
}
