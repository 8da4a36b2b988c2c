package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/storage"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
)

// StoreFactory creates email and category stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Stores bundles the two store interfaces backed by one database
type Stores struct {
	Emails     core.EmailStore
	Categories core.CategoryStore
}

// CreateStores creates the store pair based on the configuration. All
// backends serve both interfaces from the same underlying database.
func (f *StoreFactory) CreateStores() (*Stores, error) {
	storageType := f.cfg.GetString("storage.type")

	switch storageType {
	case "memory":
		store := storage.NewMemoryStore(f.logger)
		return &Stores{Emails: store, Categories: store}, nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("storage.sqlite_path")
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		store, err := storage.NewSQLiteStore(sqlitePath, f.logger)
		if err != nil {
			return nil, err
		}
		return &Stores{Emails: store, Categories: store}, nil
	case "mysql":
		mysqlDSN := f.cfg.GetString("storage.mysql_dsn")
		store, err := storage.NewMySQLStore(mysqlDSN, f.logger)
		if err != nil {
			return nil, err
		}
		return &Stores{Emails: store, Categories: store}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
