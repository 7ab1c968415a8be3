// Package app wires configuration into the catalog, storage and search
// services shared by the command-line tools.
package app

import (
	"fmt"
	"log/slog"

	"github.com/bmorris3/transitephem/internal/astrometry"
	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/config"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/planner"
	"github.com/bmorris3/transitephem/internal/report"
	"github.com/bmorris3/transitephem/internal/storage"
	"github.com/bmorris3/transitephem/internal/transform"
)

// App holds the long-lived services built from one configuration.
type App struct {
	Config   *config.Config
	Storage  *storage.Storage
	Catalog  *catalog.Provider
	Engine   *astrometry.Engine
	Planner  *planner.Planner
	Observer transform.Observer
}

// New builds the services. Close releases them.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	obs, err := cfg.Observatory.Observer()
	if err != nil {
		return nil, err
	}
	horizon, err := cfg.Observatory.HorizonDeg()
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Catalog.MaxFiles, cfg.Catalog.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	provider := catalog.NewProvider(
		catalog.NewFetcher(cfg.Catalog.SourceURL, cfg.Catalog.Timeout, logger),
		catalog.NewCache(cfg.Catalog.CacheDir, cfg.Catalog.MaxFiles),
		store,
		cfg.Catalog.MaxAge,
		logger,
	)

	engine := astrometry.New(obs, horizon)
	opts := ephem.Options{
		Transits:    cfg.Search.Transits,
		Eclipses:    cfg.Search.Eclipses,
		HorizonDeg:  horizon,
		TwilightDeg: cfg.Observatory.TwilightDeg,
		MaxEpochs:   cfg.Search.MaxEpochs,
	}

	return &App{
		Config:   cfg,
		Storage:  store,
		Catalog:  provider,
		Engine:   engine,
		Planner:  planner.New(engine, opts, Selection(cfg.Search), store, logger),
		Observer: obs,
	}, nil
}

// Close closes the database.
func (a *App) Close() error {
	return a.Storage.Close()
}

// Selection converts the search limits.
func Selection(s config.SearchConfig) catalog.Selection {
	return catalog.Selection{Band: s.Band, MagLimit: s.MagLimit, DepthLimit: s.DepthLimit}
}

// ReportOptions describes the site for reports.
func (a *App) ReportOptions() report.Options {
	lon := transform.Degrees(a.Observer.LonRad)
	if lon > 180 {
		lon -= 360
	}
	return report.Options{
		Observatory:      a.Config.Observatory.Name,
		LatDeg:           transform.Degrees(a.Observer.LatRad),
		LonDeg:           lon,
		Band:             a.Config.Search.Band,
		LocalOffsetHours: a.Config.Output.LocalOffsetHours,
	}
}
