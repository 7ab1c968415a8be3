// Command ephemd serves event searches for the configured observatory over
// HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmorris3/transitephem/internal/api"
	"github.com/bmorris3/transitephem/internal/app"
	"github.com/bmorris3/transitephem/internal/auth"
	"github.com/bmorris3/transitephem/internal/cache"
	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/config"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/health"
	"github.com/bmorris3/transitephem/internal/logging"
	"github.com/bmorris3/transitephem/internal/metrics"
	"github.com/bmorris3/transitephem/internal/planner"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (defaults and TRANSITEPHEM_* env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := a.Catalog.Store()
	if _, err := a.Catalog.Load(ctx); err != nil {
		logger.Warn("no catalog available at startup, will retry", "error", err)
	}

	results := cache.New(cache.Config{
		Days:    int(cfg.Search.Days),
		Refresh: cfg.Server.CacheRefresh,
	}, store, func(ctx context.Context, ds *catalog.Dataset, w ephem.Window) (*planner.Plan, error) {
		return a.Planner.Run(ctx, ds, w, nil)
	}, logger)
	go results.Start(ctx)

	go refreshCatalog(ctx, a.Catalog, cfg.Server.CatalogRefresh, logger)

	srv := api.NewServer(api.Config{
		Addr:          cfg.Server.Addr,
		Auth:          auth.Config{Enabled: cfg.Server.AuthEnabled, Token: cfg.Server.AuthToken},
		TrustProxy:    cfg.Server.TrustProxy,
		MaxDays:       cfg.Server.MaxDays,
		MaxConcurrent: cfg.Server.MaxConcurrent,
	}, api.Deps{
		Catalog:   store,
		Selection: app.Selection(cfg.Search),
		Results:   results,
		Runs:      a.Storage,
		Report:    a.ReportOptions(),
		Ready: []health.Check{
			{Name: "database", Fn: a.Storage.Ping},
			{Name: "catalog", Fn: func(context.Context) error {
				if store.Get() == nil {
					return planner.ErrNoCatalog
				}
				return nil
			}},
		},
	}, logger)

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "auth_enabled", cfg.Server.AuthEnabled, "observatory", cfg.Observatory.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refreshCatalog reloads the catalog every interval, which downloads a new
// copy once the local one is older than catalog.max_age, and keeps the
// catalog gauges current. Until a catalog is loaded it retries every minute.
func refreshCatalog(ctx context.Context, p *catalog.Provider, interval time.Duration, logger *slog.Logger) {
	gauge := time.NewTicker(10 * time.Second)
	defer gauge.Stop()
	reload := time.NewTicker(interval)
	defer reload.Stop()

	lastAttempt := time.Now()
	load := func() {
		lastAttempt = time.Now()
		if _, err := p.Load(ctx); err != nil {
			logger.Warn("catalog refresh failed", "error", err)
		}
	}

	for {
		select {
		case <-gauge.C:
			ds := p.Store().Get()
			if ds == nil {
				if time.Since(lastAttempt) >= time.Minute {
					load()
				}
				continue
			}
			metrics.SetCatalog(ds.Len(), p.Store().Age(time.Now()))
		case <-reload.C:
			load()
		case <-ctx.Done():
			return
		}
	}
}
