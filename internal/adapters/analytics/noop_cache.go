package analytics

import "context"

// NoopCache is an AnalyticsCache that does nothing, for deployments
// without an analytics layer.
type NoopCache struct{}

// NewNoopCache creates a new no-op analytics cache
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// Invalidate does nothing
func (c *NoopCache) Invalidate(ctx context.Context, owner string) error {
	return nil
}
