// Command transitephem lists upcoming observable exoplanet transits and
// eclipses for an observatory and writes them as CSV and HTML reports.
//
// Usage:
//
//	transitephem [-config file] [search|now|catalog] [flags]
//
// search (the default) runs the event search and writes the reports. now
// schedules "transiting now" summaries and optionally posts them. catalog
// refreshes the local catalog copy and prints a summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmorris3/transitephem/internal/app"
	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/config"
	"github.com/bmorris3/transitephem/internal/logging"
	"github.com/bmorris3/transitephem/internal/metrics"
	"github.com/bmorris3/transitephem/internal/notify"
	"github.com/bmorris3/transitephem/internal/planner"
	"github.com/bmorris3/transitephem/internal/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML configuration (defaults and TRANSITEPHEM_* env when empty)")
	quiet := flag.Bool("quiet", false, "hide the progress bar")
	watch := flag.Bool("watch", false, "now: keep running and post each summary at its minute")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "search"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	switch cmd {
	case "search":
		err = runSearch(ctx, a, logger, *quiet)
	case "now":
		err = runNow(ctx, a, logger, *watch)
	case "catalog":
		err = runCatalog(ctx, a)
	default:
		err = fmt.Errorf("unknown command %q (want search, now or catalog)", cmd)
	}

	if path := cfg.Metrics.Textfile; path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			logger.Warn("failed to write metrics textfile", "path", path, "error", werr)
		}
	}
	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		return 1
	}
	return 0
}

func loadCatalog(ctx context.Context, a *app.App) (*catalog.Dataset, error) {
	ds, err := a.Catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetCatalog(ds.Len(), a.Catalog.Store().Age(time.Now()))
	return ds, nil
}

func runSearch(ctx context.Context, a *app.App, logger *slog.Logger, quiet bool) error {
	w, err := a.Config.Search.Window(time.Now())
	if err != nil {
		return err
	}
	ds, err := loadCatalog(ctx, a)
	if err != nil {
		return err
	}

	var (
		progress planner.Progress
		bar      *barProgress
	)
	if !quiet {
		bar = &barProgress{w: os.Stderr, logger: logger}
		progress = bar
	}
	res, err := a.Planner.Run(ctx, ds, w, progress)
	if bar != nil {
		bar.Finish()
	}
	if res == nil {
		return err
	}
	if err != nil {
		logger.Warn("search finished with error", "error", err)
	}

	opts := a.ReportOptions()
	opts.RunID = res.ID
	rep := report.Build(res.Result, res.Records, opts)

	files, err := report.WriteFiles(a.Config.Output.Dir, rep, a.Config.Output.CSV, a.Config.Output.HTML)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d transits and %d eclipses on %d nights, %s to %s\n",
		rep.Observatory, rep.Transits, rep.Eclipses, len(rep.Nights),
		rep.Start.Format(time.DateOnly), rep.End.Format(time.DateOnly))
	if len(rep.NeverUp) > 0 {
		fmt.Printf("never above the horizon: %d planets\n", len(rep.NeverUp))
	}
	for _, f := range files {
		fmt.Println("wrote", f)
	}
	return nil
}

func runNow(ctx context.Context, a *app.App, logger *slog.Logger, watch bool) error {
	ds, err := loadCatalog(ctx, a)
	if err != nil {
		return err
	}

	var sender notify.Sender
	if tg := a.Config.Telegram; tg.Enabled {
		t, err := notify.NewTelegram(tg.BotToken, tg.ChatID, tg.MaxRetries, tg.RetryDelayBase)
		if err != nil {
			return err
		}
		sender = t
		logger.Info("telegram client initialized")
	}

	n := notify.New(a.Storage, sender, a.Config.Now.Lookahead, a.Config.Now.Grace, a.Config.Now.MaxLength, nil, logger)
	slots, err := n.Schedule(ctx, ds.Records, time.Now())
	if err != nil {
		return err
	}
	for _, slot := range slots {
		for _, m := range slot.Messages {
			fmt.Printf("%s UT  %s\n", slot.Minute.Format("2006-01-02 15:04"), m.Text)
		}
	}

	if sender == nil {
		return nil
	}
	if !watch {
		_, err := n.Dispatch(ctx, time.Now())
		return err
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		if _, err := n.Dispatch(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("dispatch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func runCatalog(ctx context.Context, a *app.App) error {
	ds, err := loadCatalog(ctx, a)
	if err != nil {
		return err
	}
	selected := catalog.Select(ds.Records, app.Selection(a.Config.Search))
	fmt.Printf("source:     %s\n", ds.Source)
	fmt.Printf("fetched at: %s\n", ds.FetchedAt.UTC().Format(time.RFC3339))
	fmt.Printf("planets:    %d\n", ds.Len())
	fmt.Printf("selected:   %d (%s <= %.1f, depth >= %g)\n",
		len(selected), a.Config.Search.Band, a.Config.Search.MagLimit, a.Config.Search.DepthLimit)
	return nil
}
