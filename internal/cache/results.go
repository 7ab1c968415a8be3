// Package cache keeps recent search results for the HTTP server.
//
// Results are keyed by window start date and length. A background worker
// keeps the default window starting today warm, evicts windows that began
// more than Buffer ago, and rebuilds when a new catalog is loaded. Reads
// keep being served from the old results while the rebuild runs.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/metrics"
	"github.com/bmorris3/transitephem/internal/planner"
	"github.com/bmorris3/transitephem/internal/transform"
)

// Config holds cache configuration.
type Config struct {
	Days       int           // window length kept warm (default: 30)
	Refresh    time.Duration // maintenance interval (default: 10m)
	Buffer     time.Duration // keep windows this long after they start (default: 24h)
	MaxEntries int           // default: 64
}

// Key identifies one search window.
type Key struct {
	Start string // UT date, YYYY-MM-DD
	Days  int
}

// Window returns the search window of k, from UT midnight of the start date.
func (k Key) Window() (ephem.Window, error) {
	day, err := time.Parse(time.DateOnly, k.Start)
	if err != nil {
		return ephem.Window{}, err
	}
	start := transform.JulianDate(day)
	return ephem.Window{Start: start, End: start + float64(k.Days)}, nil
}

// KeyFor returns the key of the window starting on t's UT date.
func KeyFor(t time.Time, days int) Key {
	return Key{Start: t.UTC().Format(time.DateOnly), Days: days}
}

// Entry wraps a plan with generation metadata.
type Entry struct {
	Plan        *planner.Plan
	GeneratedAt time.Time
}

// RunFunc computes the plan for one window.
type RunFunc func(ctx context.Context, ds *catalog.Dataset, w ephem.Window) (*planner.Plan, error)

type call struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// ResultCache is an in-memory cache of search results. Safe for concurrent
// use by multiple goroutines.
type ResultCache struct {
	mu       sync.RWMutex
	entries  map[Key]*Entry
	inflight map[Key]*call

	config Config
	run    RunFunc
	store  *catalog.Store
	logger *slog.Logger
	now    func() time.Time

	// Catalog the cached entries were computed from; guarded by mu.
	currentFetchedAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	rebuilding atomic.Bool
}

// New creates a result cache over the catalog in store.
func New(config Config, store *catalog.Store, run RunFunc, logger *slog.Logger) *ResultCache {
	if config.Days <= 0 {
		config.Days = 30
	}
	if config.Refresh <= 0 {
		config.Refresh = 10 * time.Minute
	}
	if config.Buffer <= 0 {
		config.Buffer = 24 * time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 64
	}
	logger = logger.With("component", "cache")
	logger.Info("cache initialized",
		"days", config.Days,
		"refresh", config.Refresh,
		"buffer", config.Buffer,
		"max_entries", config.MaxEntries,
	)
	return &ResultCache{
		entries:  make(map[Key]*Entry),
		inflight: make(map[Key]*call),
		config:   config,
		run:      run,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// DefaultDays is the window length kept warm.
func (c *ResultCache) DefaultDays() int { return c.config.Days }

// Get returns the plan for key, computing it on a miss. Concurrent misses
// for the same key share one computation.
func (c *ResultCache) Get(ctx context.Context, key Key) (*Entry, error) {
	ds := c.store.Get()
	if ds == nil {
		return nil, planner.ErrNoCatalog
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && entry.Plan.FetchedAt.Equal(ds.FetchedAt) {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry, nil
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return c.compute(ctx, ds, key)
}

// compute joins the in-flight search for key or starts one. The search runs
// detached from ctx, so a caller that gives up does not fail the others.
func (c *ResultCache) compute(ctx context.Context, ds *catalog.Dataset, key Key) (*Entry, error) {
	c.mu.Lock()
	cl, ok := c.inflight[key]
	if !ok {
		cl = &call{done: make(chan struct{})}
		c.inflight[key] = cl
		go c.fill(context.WithoutCancel(ctx), ds, key, cl)
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
		return cl.entry, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fill runs the search for key and publishes its outcome on cl.
func (c *ResultCache) fill(ctx context.Context, ds *catalog.Dataset, key Key, cl *call) {
	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(cl.done)
	}()

	w, err := key.Window()
	if err != nil {
		cl.err = err
		return
	}
	plan, err := c.run(ctx, ds, w)
	if plan == nil {
		cl.err = err
		return
	}
	if err != nil {
		c.logger.Warn("search finished with error", "start", key.Start, "days", key.Days, "error", err)
	}
	cl.entry = &Entry{Plan: plan, GeneratedAt: c.now()}
	c.put(key, cl.entry)
}

// put stores an entry. Caller must not hold mu.
func (c *ResultCache) put(key Key, entry *Entry) {
	c.mu.Lock()
	c.entries[key] = entry
	var evicted int
	for len(c.entries) > c.config.MaxEntries {
		delete(c.entries, c.oldestLocked())
		evicted++
	}
	c.mu.Unlock()

	c.recordEvictions(evicted)
	c.updateMetrics()
}

// oldestLocked returns the least recently generated key. Caller holds mu.
func (c *ResultCache) oldestLocked() Key {
	var (
		oldest Key
		at     time.Time
	)
	for k, e := range c.entries {
		if at.IsZero() || e.GeneratedAt.Before(at) {
			oldest, at = k, e.GeneratedAt
		}
	}
	return oldest
}

// evictExpired removes windows that started before now - buffer.
func (c *ResultCache) evictExpired() int {
	cutoff := c.now().Add(-c.config.Buffer)
	var removed int

	c.mu.Lock()
	for k := range c.entries {
		start, err := time.Parse(time.DateOnly, k.Start)
		if err != nil || start.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.recordEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

func (c *ResultCache) recordEvictions(n int) {
	if n == 0 {
		return
	}
	c.evictions.Add(int64(n))
	metrics.AddCacheEvictions(n)
}

// replaceAll swaps in a new set of entries computed from fetchedAt. Entries
// already stored for fetchedAt while the rebuild ran are kept.
func (c *ResultCache) replaceAll(entries map[Key]*Entry, fetchedAt time.Time) {
	c.mu.Lock()
	for k, e := range c.entries {
		if _, ok := entries[k]; !ok && e.Plan.FetchedAt.Equal(fetchedAt) {
			entries[k] = e
		}
	}
	c.entries = entries
	c.currentFetchedAt = fetchedAt
	var evicted int
	for len(c.entries) > c.config.MaxEntries {
		delete(c.entries, c.oldestLocked())
		evicted++
	}
	c.mu.Unlock()

	c.recordEvictions(evicted)
	c.updateMetrics()
}

// Stats returns current cache statistics.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	fetchedAt := c.currentFetchedAt
	c.mu.RUnlock()

	return Stats{
		Entries:          count,
		CatalogFetchedAt: fetchedAt,
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Evictions:        c.evictions.Load(),
		Rebuilding:       c.rebuilding.Load(),
	}
}

// Stats holds cache statistics.
type Stats struct {
	Entries          int       `json:"entries"`
	CatalogFetchedAt time.Time `json:"catalog_fetched_at"`
	Hits             int64     `json:"hits"`
	Misses           int64     `json:"misses"`
	Evictions        int64     `json:"evictions"`
	Rebuilding       bool      `json:"rebuilding"`
}

func (c *ResultCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()
	metrics.SetCacheEntries(count)
}
