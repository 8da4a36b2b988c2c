package categorycache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// Cache is a per-owner TTL read-through cache over a CategoryStore.
// Category edits are rare; the CRUD collaborator is expected to call
// Invalidate on writes, the TTL bounds staleness otherwise.
type Cache struct {
	store       core.CategoryStore
	entries     map[string]*entry
	mu          sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	logger      *zap.Logger
	stopCh      chan struct{}
}

type entry struct {
	categories []core.Category
	expiresAt  time.Time
}

// New creates a new category cache
func New(store core.CategoryStore, ttl, cleanupFreq time.Duration, logger *zap.Logger) *Cache {
	c := &Cache{
		store:       store,
		entries:     make(map[string]*entry),
		ttl:         ttl,
		cleanupFreq: cleanupFreq,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go c.startCleanupTask()

	return c
}

// Categories returns the active categories of an owner, loading them from
// the store on a miss or after expiry.
func (c *Cache) Categories(ctx context.Context, owner string) ([]core.Category, error) {
	c.mu.RLock()
	e, ok := c.entries[owner]
	c.mu.RUnlock()

	if ok && time.Now().Before(e.expiresAt) {
		c.logger.Debug("Category cache hit", zap.String("owner", owner))
		return e.categories, nil
	}

	categories, err := c.store.ListActiveCategories(ctx, owner)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[owner] = &entry{
		categories: categories,
		expiresAt:  time.Now().Add(c.ttl),
	}
	c.mu.Unlock()

	return categories, nil
}

// Invalidate drops the cached rules of an owner
func (c *Cache) Invalidate(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, owner)
}

// cleanup removes expired entries
func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for owner, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, owner)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired category cache entries", zap.Int("expired_count", expiredCount))
}

// startCleanupTask starts a background task to clean up expired entries
func (c *Cache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (c *Cache) Stop() {
	close(c.stopCh)
}
