package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/di"
	"github.com/mikey/email-triage/internal/factory"
	"github.com/mikey/email-triage/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	ingestor ports.Ingestor,
	queue *core.JobQueue,
	mlClient core.MLClient,
	categories core.CategoryProvider,
	notifier core.Notifier,
	analytics core.AnalyticsCache,
	stores *factory.Stores,
) error {
	defer logger.Sync()

	// Start the ingest surface
	if err := ingestor.Start(); err != nil {
		logger.Fatal("Failed to start ingestor", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop accepting new mail first
	if err := ingestor.Stop(); err != nil {
		logger.Error("Failed to stop ingestor", zap.Error(err))
	}

	// Let in-flight refinement jobs finish
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.Drain(drainCtx); err != nil {
		stats := queue.GetStats()
		logger.Warn("Refinement queue did not drain in time",
			zap.Error(err),
			zap.Int("pending", stats.CurrentQueueSize))
	}

	// Close any resources that need closing
	if closer, ok := mlClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close ML client", zap.Error(err))
		}
	}
	if stopper, ok := categories.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	if closer, ok := notifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close notifier", zap.Error(err))
		}
	}
	if closer, ok := analytics.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close analytics cache", zap.Error(err))
		}
	}
	if closer, ok := stores.Emails.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
