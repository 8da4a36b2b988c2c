package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/categorycache"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/factory"
	"github.com/mikey/email-triage/internal/logging"
	"github.com/mikey/email-triage/internal/ports"
	"github.com/mikey/email-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewMLFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewAnalyticsFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewIngestFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register ML client
	if err := container.Provide(func(f *factory.MLFactory) (core.MLClient, error) {
		return f.CreateMLClient()
	}); err != nil {
		return nil, err
	}

	// Register stores
	if err := container.Provide(func(f *factory.StoreFactory) (*factory.Stores, error) {
		return f.CreateStores()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *factory.Stores) core.EmailStore {
		return s.Emails
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *factory.Stores) core.CategoryStore {
		return s.Categories
	}); err != nil {
		return nil, err
	}

	// Register category cache
	if err := container.Provide(func(
		cfg *config.Config,
		store core.CategoryStore,
		logger *zap.Logger,
	) (core.CategoryProvider, error) {
		ttl, err := cfg.GetDuration("categories.cache_ttl")
		if err != nil {
			return nil, err
		}
		cleanupFreq, err := cfg.GetDuration("categories.cleanup_frequency")
		if err != nil {
			return nil, err
		}
		return categorycache.New(store, ttl, cleanupFreq, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register notifier and analytics cache
	if err := container.Provide(func(f *factory.NotifierFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AnalyticsFactory) (core.AnalyticsCache, error) {
		return f.CreateAnalyticsCache()
	}); err != nil {
		return nil, err
	}

	// Register stage configurations
	if err := container.Provide(func(cfg *config.Config) config.Phase1Config {
		return cfg.GetPhase1()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) (config.Phase2Config, error) {
		return cfg.GetPhase2()
	}); err != nil {
		return nil, err
	}

	// Register phase 1 classifier
	if err := container.Provide(core.NewPhase1Classifier); err != nil {
		return nil, err
	}

	// Register refiner
	if err := container.Provide(core.NewRefiner); err != nil {
		return nil, err
	}
	if err := container.Provide(func(r *core.Refiner) core.RefineFunc {
		return r
	}); err != nil {
		return nil, err
	}

	// Register job queue
	if err := container.Provide(core.NewJobQueue); err != nil {
		return nil, err
	}
	if err := container.Provide(func(q *core.JobQueue) core.Enqueuer {
		return q
	}); err != nil {
		return nil, err
	}

	// Register triage pipeline
	if err := container.Provide(core.NewPipeline); err != nil {
		return nil, err
	}

	// Register ingest surface
	if err := container.Provide(func(f *factory.IngestFactory) (ports.Ingestor, error) {
		return f.CreateIngestor()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
