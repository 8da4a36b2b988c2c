package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/ml/bedrock"
	"github.com/mikey/email-triage/internal/adapters/ml/gemini"
	"github.com/mikey/email-triage/internal/adapters/ml/modelservice"
	"github.com/mikey/email-triage/internal/adapters/ml/openai"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
)

// MLFactory creates ML classification clients
type MLFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewMLFactory creates a new ML factory
func NewMLFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *MLFactory {
	return &MLFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateMLClient creates a new ML client based on the configuration
func (f *MLFactory) CreateMLClient() (core.MLClient, error) {
	mlConfig := f.cfg.GetML()

	switch mlConfig.Provider {
	case "modelservice":
		factory := modelservice.NewFactory(f.cfg, f.logger)
		return factory.CreateMLClient()
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClient()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateMLClient()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateMLClient()
	default:
		return nil, fmt.Errorf("unsupported ML provider: %s", mlConfig.Provider)
	}
}
