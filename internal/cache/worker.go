package cache

import (
	"context"
	"slices"
	"time"
)

// Start begins the background maintenance loop. It waits for a catalog,
// warms the default window, then on every refresh tick:
//   - rebuilds all entries when the catalog has changed
//   - computes the default window when the UT date rolls over
//   - evicts windows that started more than Buffer ago
//
// Blocks until ctx is cancelled.
func (c *ResultCache) Start(ctx context.Context) {
	if !c.waitForCatalog(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := time.NewTicker(c.config.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache worker stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForCatalog blocks until a catalog is loaded, checking every second.
// Returns false if ctx is cancelled.
func (c *ResultCache) waitForCatalog(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("cache waiting for catalog")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("catalog available, starting cache warmup")
				return true
			}
		}
	}
}

// warmup computes the default window starting today.
func (c *ResultCache) warmup(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	c.mu.Lock()
	c.currentFetchedAt = ds.FetchedAt
	c.mu.Unlock()

	start := time.Now()
	key := KeyFor(c.now(), c.config.Days)
	if _, err := c.Get(ctx, key); err != nil {
		c.logger.Warn("warmup search failed", "start", key.Start, "days", key.Days, "error", err)
		return
	}
	c.logger.Info("cache warmup complete",
		"start", key.Start,
		"days", key.Days,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *ResultCache) tick(ctx context.Context) {
	if c.catalogChanged() {
		c.rebuild(ctx)
		return
	}

	key := KeyFor(c.now(), c.config.Days)
	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		if _, err := c.Get(ctx, key); err != nil {
			c.logger.Warn("default window search failed", "start", key.Start, "error", err)
		}
	}

	c.evictExpired()
}

// catalogChanged reports whether a newer catalog has been loaded since the
// entries were built.
func (c *ResultCache) catalogChanged() bool {
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !ds.FetchedAt.Equal(c.currentFetchedAt)
}

// rebuild recomputes every cached window against the current catalog and
// swaps the new entries in at once. Windows that fail are dropped.
func (c *ResultCache) rebuild(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	c.mu.RLock()
	old := c.currentFetchedAt
	keys := make([]Key, 0, len(c.entries)+1)
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	if today := KeyFor(c.now(), c.config.Days); !slices.Contains(keys, today) {
		keys = append(keys, today)
	}

	c.logger.Info("catalog cutover starting",
		"old_catalog_fetched_at", old.UTC().Format(time.RFC3339),
		"new_catalog_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
		"windows", len(keys),
	)
	c.rebuilding.Store(true)
	defer c.rebuilding.Store(false)

	start := time.Now()
	fresh := make(map[Key]*Entry, len(keys))
	for _, k := range keys {
		if ctx.Err() != nil {
			c.logger.Warn("cutover cancelled by context")
			return
		}
		w, err := k.Window()
		if err != nil {
			continue
		}
		plan, err := c.run(ctx, ds, w)
		if plan == nil {
			c.logger.Warn("cutover search failed", "start", k.Start, "days", k.Days, "error", err)
			continue
		}
		fresh[k] = &Entry{Plan: plan, GeneratedAt: c.now()}
	}

	c.replaceAll(fresh, ds.FetchedAt)
	c.logger.Info("catalog cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"entries_replaced", len(fresh),
	)
}
