package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/ingest"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/ports"
)

// IngestFactory creates email ingest surfaces based on configuration
type IngestFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *core.Pipeline
}

// NewIngestFactory creates a new ingest factory
func NewIngestFactory(cfg *config.Config, logger *zap.Logger, pipeline *core.Pipeline) *IngestFactory {
	return &IngestFactory{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
	}
}

// CreateIngestor creates an ingest surface based on the configuration
func (f *IngestFactory) CreateIngestor() (ports.Ingestor, error) {
	ingestCfg := f.cfg.GetIngest()

	switch ingestCfg.Type {
	case "smtp":
		return ingest.NewSMTPIngest(f.pipeline, ingestCfg, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported ingest type: %s", ingestCfg.Type)
	}
}
