package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxAge is how long a download is used before a fresh one is fetched.
const DefaultMaxAge = 14 * 24 * time.Hour

// Snapshots persists parsed catalogs keyed by download time, so a cached
// download is parsed only once.
type Snapshots interface {
	LoadCatalog(ctx context.Context, fetchedAt time.Time) (map[string]Record, bool, error)
	SaveCatalog(ctx context.Context, source string, fetchedAt time.Time, records map[string]Record) error
}

// Provider produces the current catalog from the disk cache, downloading a
// fresh copy when the cached one is missing or too old.
type Provider struct {
	fetcher   *Fetcher
	cache     *Cache
	snapshots Snapshots
	store     *Store
	maxAge    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewProvider wires a Provider. snapshots may be nil.
func NewProvider(fetcher *Fetcher, cache *Cache, snapshots Snapshots, maxAge time.Duration, logger *slog.Logger) *Provider {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Provider{
		fetcher:   fetcher,
		cache:     cache,
		snapshots: snapshots,
		store:     NewStore(),
		maxAge:    maxAge,
		logger:    logger.With("component", "catalog"),
		now:       time.Now,
	}
}

// Store returns the store the provider publishes datasets to.
func (p *Provider) Store() *Store {
	return p.store
}

// Load returns the catalog, refreshing the cache first when it is stale. A
// failed download falls back to the stale copy if there is one.
func (p *Provider) Load(ctx context.Context) (*Dataset, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	ts, err := p.cache.Latest()
	switch {
	case errors.Is(err, ErrNoCache):
		p.logger.Info("no local copy of the catalog, downloading", "url", p.fetcher.SourceURL())
		if ts, err = p.download(ctx); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case p.now().Sub(ts) > p.maxAge:
		p.logger.Info("local catalog is stale, downloading", "age", p.now().Sub(ts).Round(time.Hour), "max_age", p.maxAge)
		fresh, derr := p.download(ctx)
		if derr != nil {
			p.logger.Warn("catalog download failed, using stale copy", "error", derr, "fetched_at", ts)
		} else {
			ts = fresh
		}
	default:
		p.logger.Debug("using cached catalog", "fetched_at", ts)
	}

	if cur := p.store.Get(); cur != nil && cur.FetchedAt.Equal(ts) {
		return cur, nil
	}

	ds, err := p.dataset(ctx, ts)
	if err != nil {
		return nil, err
	}
	p.store.Set(ds)
	return ds, nil
}

func (p *Provider) download(ctx context.Context) (time.Time, error) {
	data, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return time.Time{}, err
	}
	// The cache names files by unix second.
	ts := p.now().UTC().Truncate(time.Second)
	if err := p.cache.Write(data, ts); err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// dataset builds the dataset for the download taken at ts, from a snapshot
// when one exists.
func (p *Provider) dataset(ctx context.Context, ts time.Time) (*Dataset, error) {
	source := p.fetcher.SourceURL()
	if p.snapshots != nil {
		records, ok, err := p.snapshots.LoadCatalog(ctx, ts)
		switch {
		case err != nil:
			p.logger.Warn("reading catalog snapshot failed", "error", err)
		case ok:
			p.logger.Debug("using parsed catalog snapshot", "planets", len(records))
			return &Dataset{Source: source, FetchedAt: ts, Records: records}, nil
		}
	}

	data, cachedAt, err := p.cache.LoadLatest()
	if err != nil {
		return nil, err
	}
	records, err := Parse(bytes.NewReader(data), p.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	p.logger.Info("parsed catalog", "planets", len(records), "fetched_at", cachedAt)

	if p.snapshots != nil {
		if err := p.snapshots.SaveCatalog(ctx, source, cachedAt, records); err != nil {
			p.logger.Warn("saving catalog snapshot failed", "error", err)
		}
	}
	return &Dataset{Source: source, FetchedAt: cachedAt, Records: records}, nil
}
