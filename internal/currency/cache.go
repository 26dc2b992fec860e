package currency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/garyjia/travel-support/internal/domain/entity"
)

// CacheConfig tunes the rate cache
type CacheConfig struct {
	// TTL is how long a fetched table is considered fresh
	TTL time.Duration
	// RetryBackoff is how long a failed refetch suppresses further attempts
	// while a previous table is still available
	RetryBackoff time.Duration
	// FetchTimeout bounds one provider call. The call does not follow the
	// cancellation of the request that started it.
	FetchTimeout time.Duration
}

// DefaultCacheConfig returns the default cache settings
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:          6 * time.Hour,
		RetryBackoff: time.Minute,
		FetchTimeout: 30 * time.Second,
	}
}

// CacheStatus describes the cached table for one base currency
type CacheStatus struct {
	Base        entity.Currency `json:"base"`
	Cached      bool            `json:"cached"`
	Stale       bool            `json:"stale"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
	NextUpdate  *time.Time      `json:"next_update,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

type cacheEntry struct {
	table      *RateTable
	fetchedAt  time.Time
	expiresAt  time.Time
	retryAfter time.Time
	lastErr    error
}

// RateCache holds one rate table per base currency. Expired tables are
// refetched on demand; callers arriving while a refetch is in flight get
// the previous table instead of waiting.
type RateCache struct {
	provider RateProvider
	cfg      CacheConfig
	now      func() time.Time
	logger   *zap.Logger

	// mu guards entries and refreshing. refreshing[base] is set exactly
	// while a flight for base is registered in group.
	mu         sync.RWMutex
	entries    map[entity.Currency]*cacheEntry
	refreshing map[entity.Currency]bool
	group      singleflight.Group
}

// NewRateCache creates a cache in front of provider
func NewRateCache(provider RateProvider, cfg CacheConfig, logger *zap.Logger) *RateCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultCacheConfig().FetchTimeout
	}
	return &RateCache{
		provider:   provider,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
		entries:    make(map[entity.Currency]*cacheEntry),
		refreshing: make(map[entity.Currency]bool),
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *RateCache) WithClock(now func() time.Time) *RateCache {
	c.now = now
	return c
}

// Get returns the table for base. stale is true when the table is older
// than the TTL and no refetch has succeeded yet. An error is returned only
// when nothing is cached and the provider fails.
func (c *RateCache) Get(ctx context.Context, base entity.Currency) (table *RateTable, stale bool, err error) {
	now := c.now()

	c.mu.Lock()
	entry := c.entries[base]
	if entry != nil && entry.table == nil {
		// Only a failure is recorded; honour the backoff before retrying.
		if now.Before(entry.retryAfter) && entry.lastErr != nil {
			lastErr := entry.lastErr
			c.mu.Unlock()
			return nil, false, fmt.Errorf("fetch exchange rates for %s: %w", base, lastErr)
		}
		entry = nil
	}

	if entry != nil {
		if now.Before(entry.expiresAt) {
			c.mu.Unlock()
			return entry.table, false, nil
		}
		if c.refreshing[base] || now.Before(entry.retryAfter) {
			c.mu.Unlock()
			return entry.table, true, nil
		}
	}
	results := c.startLocked(ctx, base)
	c.mu.Unlock()

	fresh, err := c.wait(ctx, results)
	if err != nil {
		if entry != nil && ctx.Err() != nil {
			return entry.table, true, nil
		}
		if entry != nil {
			c.logger.Warn("Exchange rate refresh failed, serving cached rates",
				zap.String("base", string(base)),
				zap.Time("last_updated", entry.fetchedAt),
				zap.Error(err))
			return entry.table, true, nil
		}
		return nil, false, err
	}

	return fresh, false, nil
}

// Refresh forces a refetch of base regardless of freshness. It joins a
// refetch that is already running.
func (c *RateCache) Refresh(ctx context.Context, base entity.Currency) error {
	c.mu.Lock()
	results := c.startLocked(ctx, base)
	c.mu.Unlock()

	_, err := c.wait(ctx, results)
	return err
}

// Status reports what is cached for base
func (c *RateCache) Status(base entity.Currency) CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := CacheStatus{Base: base}
	entry, ok := c.entries[base]
	if !ok || entry.table == nil {
		if ok && entry.lastErr != nil {
			status.LastError = entry.lastErr.Error()
		}
		return status
	}

	lastUpdated := entry.fetchedAt
	nextUpdate := entry.expiresAt
	status.Cached = true
	status.LastUpdated = &lastUpdated
	status.NextUpdate = &nextUpdate
	status.Stale = !c.now().Before(entry.expiresAt)
	if entry.lastErr != nil {
		status.LastError = entry.lastErr.Error()
	}
	return status
}

// Bases returns the base currencies that currently have a cached table
func (c *RateCache) Bases() []entity.Currency {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bases := make([]entity.Currency, 0, len(c.entries))
	for _, cur := range entity.SupportedCurrencies {
		if e, ok := c.entries[cur]; ok && e.table != nil {
			bases = append(bases, cur)
		}
	}
	return bases
}

// Clear drops every cached table so the next lookup refetches
func (c *RateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[entity.Currency]*cacheEntry)
	c.logger.Info("Exchange rate cache cleared")
}

// startLocked registers a flight for base, or joins the running one.
// c.mu must be held.
func (c *RateCache) startLocked(ctx context.Context, base entity.Currency) <-chan singleflight.Result {
	c.refreshing[base] = true
	return c.group.DoChan(string(base), func() (interface{}, error) {
		return c.fetch(ctx, base)
	})
}

func (c *RateCache) wait(ctx context.Context, results <-chan singleflight.Result) (*RateTable, error) {
	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*RateTable), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *RateCache) fetch(ctx context.Context, base entity.Currency) (*RateTable, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
	defer cancel()

	table, err := c.provider.FetchRates(fetchCtx, base)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	// later callers start a new flight instead of joining this one
	c.group.Forget(string(base))
	delete(c.refreshing, base)

	if err != nil {
		entry := c.entries[base]
		if entry == nil {
			entry = &cacheEntry{}
			c.entries[base] = entry
		}
		entry.lastErr = err
		entry.retryAfter = now.Add(c.cfg.RetryBackoff)
		return nil, fmt.Errorf("fetch exchange rates for %s: %w", base, err)
	}

	c.entries[base] = &cacheEntry{
		table:     table,
		fetchedAt: now,
		expiresAt: now.Add(c.cfg.TTL),
	}
	c.logger.Debug("Exchange rates refreshed",
		zap.String("base", string(base)),
		zap.Int("rates", len(table.Rates)))
	return table, nil
}
