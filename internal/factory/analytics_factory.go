package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/analytics"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
)

// AnalyticsFactory creates analytics caches based on configuration
type AnalyticsFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAnalyticsFactory creates a new analytics factory
func NewAnalyticsFactory(cfg *config.Config, logger *zap.Logger) *AnalyticsFactory {
	return &AnalyticsFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAnalyticsCache creates an analytics cache based on the configuration
func (f *AnalyticsFactory) CreateAnalyticsCache() (core.AnalyticsCache, error) {
	analyticsType := f.cfg.GetString("analytics.type")

	switch analyticsType {
	case "noop":
		return analytics.NewNoopCache(), nil
	case "redis":
		return analytics.NewRedisCache(
			f.cfg.GetString("analytics.redis_addr"),
			f.cfg.GetString("analytics.redis_password"),
			f.cfg.GetInt("analytics.redis_db"),
			f.cfg.GetString("analytics.key_prefix"),
			f.logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported analytics cache type: %s", analyticsType)
	}
}
