// Package planner runs one event search against a catalog snapshot and
// records its outcome.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/metrics"
	"github.com/bmorris3/transitephem/internal/storage"
)

// ErrNoCatalog is returned when a search is asked for before any catalog
// has been loaded.
var ErrNoCatalog = errors.New("no catalog loaded")

// RunRecorder persists run summaries.
type RunRecorder interface {
	AddRun(ctx context.Context, run *storage.Run) error
}

// Progress receives per-body progress of a search.
type Progress interface {
	Start(total int)
	Step(body string)
}

// Plan is a finished search with the catalog it ran against.
type Plan struct {
	ID        string
	Result    *ephem.Result
	Records   map[string]catalog.Record
	Selected  int
	FetchedAt time.Time // catalog download time
	Started   time.Time
	Finished  time.Time
}

// Planner holds everything a search needs except the window and catalog.
type Planner struct {
	sky       ephem.Sky
	opts      ephem.Options
	selection catalog.Selection
	runs      RunRecorder
	logger    *slog.Logger
}

// New creates a Planner. runs may be nil.
func New(sky ephem.Sky, opts ephem.Options, sel catalog.Selection, runs RunRecorder, logger *slog.Logger) *Planner {
	return &Planner{
		sky:       sky,
		opts:      opts,
		selection: sel,
		runs:      runs,
		logger:    logger.With("component", "planner"),
	}
}

// Selection returns the catalog selection in use.
func (p *Planner) Selection() catalog.Selection { return p.selection }

// Run searches ds for events in w. progress may be nil. A context that is
// already done stops the run before the search; a completed search is
// returned even if ctx is cancelled meanwhile.
func (p *Planner) Run(ctx context.Context, ds *catalog.Dataset, w ephem.Window, progress Progress) (*Plan, error) {
	if ds == nil {
		return nil, ErrNoCatalog
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	selected := catalog.Select(ds.Records, p.selection)
	bodies := catalog.Bodies(selected, p.logger)
	p.logger.Info("search starting",
		"catalog_planets", ds.Len(),
		"selected", len(selected),
		"window_start", w.Start,
		"window_end", w.End,
	)

	s := ephem.NewSearcher(p.sky, p.opts, p.logger)
	if progress != nil {
		progress.Start(len(bodies))
		s.OnProgress(progress.Step)
	}
	res, err := s.Search(bodies, w)
	if err != nil {
		metrics.SearchFailed()
		return nil, err
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		Result:    res,
		Records:   ds.Records,
		Selected:  len(selected),
		FetchedAt: ds.FetchedAt,
		Started:   started,
		Finished:  time.Now(),
	}

	transits, eclipses := countKinds(res.Nights)
	metrics.ObserveSearch(metrics.SearchStats{
		Duration: plan.Finished.Sub(started),
		Transits: transits,
		Eclipses: eclipses,
		Nights:   res.Nights.Len(),
		Bodies:   res.Bodies,
		NeverUp:  len(res.NeverUp),
		Skipped:  len(res.Skipped),
	})
	p.logger.Info("search finished",
		"run_id", plan.ID,
		"nights", res.Nights.Len(),
		"transits", transits,
		"eclipses", eclipses,
		"never_up", len(res.NeverUp),
		"skipped", len(res.Skipped),
		"duration_ms", plan.Finished.Sub(started).Milliseconds(),
	)

	if p.runs != nil {
		run := &storage.Run{
			ID:          plan.ID,
			StartedAt:   started,
			FinishedAt:  plan.Finished,
			WindowStart: w.Start,
			WindowEnd:   w.End,
			Bodies:      res.Bodies,
			Nights:      res.Nights.Len(),
			Events:      res.Nights.Count(),
			NeverUp:     res.NeverUp,
		}
		if err := p.runs.AddRun(context.WithoutCancel(ctx), run); err != nil {
			return plan, fmt.Errorf("record run: %w", err)
		}
	}
	return plan, nil
}

func countKinds(n *ephem.Nights) (transits, eclipses int) {
	for night := range n.All() {
		for _, e := range night.Events {
			if e.Kind == ephem.Transit {
				transits++
			} else {
				eclipses++
			}
		}
	}
	return transits, eclipses
}
