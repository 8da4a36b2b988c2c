package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/notify"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
)

// NotifierFactory creates notifiers based on configuration
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifier creates a notifier based on the configuration
func (f *NotifierFactory) CreateNotifier() (core.Notifier, error) {
	notifierType := f.cfg.GetString("notify.type")

	switch notifierType {
	case "log":
		return notify.NewLogNotifier(f.logger), nil
	case "redis":
		return notify.NewRedisNotifier(
			f.cfg.GetString("notify.redis_addr"),
			f.cfg.GetString("notify.redis_password"),
			f.cfg.GetInt("notify.redis_db"),
			f.cfg.GetString("notify.channel_prefix"),
			f.logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", notifierType)
	}
}
