package modelservice

import (
	"net/http"

	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// Factory creates model service clients
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new model service factory
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateMLClient creates a new model service client
func (f *Factory) CreateMLClient() (core.MLClient, error) {
	msCfg, err := f.cfg.GetModelService()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: msCfg.Timeout}
	return NewClient(httpClient, msCfg.BaseURL, msCfg.ModelName, f.logger), nil
}
