package ephem

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/bmorris3/transitephem/internal/astrometry"
)

// ErrTooManyEpochs marks a body whose period is too short for the window
// under the configured epoch budget.
var ErrTooManyEpochs = errors.New("epoch count exceeds limit")

// DefaultMaxEpochs caps the epochs enumerated per body and kind.
const DefaultMaxEpochs = 100000

// Options selects what to search for and the observability thresholds.
type Options struct {
	Transits    bool
	Eclipses    bool
	HorizonDeg  float64 // minimum body altitude
	TwilightDeg float64 // Sun must be below this altitude
	MaxEpochs   int     // 0 means DefaultMaxEpochs
}

// Result is the outcome of one search run.
type Result struct {
	Window  Window   `json:"window"`
	Nights  *Nights  `json:"-"`
	NeverUp []string `json:"never_up"` // bodies that never clear the horizon, each listed once
	Skipped []string `json:"skipped"`  // bodies without a usable ephemeris
	Bodies  int      `json:"bodies"`   // bodies examined
}

// Searcher runs the per-body, per-day scan. A Searcher is single-threaded;
// use one per goroutine.
type Searcher struct {
	filter   *Filter
	opts     Options
	logger   *slog.Logger
	progress func(body string)
}

// NewSearcher creates a Searcher over sky.
func NewSearcher(sky Sky, opts Options, logger *slog.Logger) *Searcher {
	if opts.MaxEpochs <= 0 {
		opts.MaxEpochs = DefaultMaxEpochs
	}
	return &Searcher{
		filter: NewFilter(sky, opts.HorizonDeg, opts.TwilightDeg),
		opts:   opts,
		logger: logger.With("component", "search"),
	}
}

// OnProgress registers fn to be called before each body is scanned.
func (s *Searcher) OnProgress(fn func(body string)) {
	s.progress = fn
}

// nameSet is an insertion-ordered set of body names.
type nameSet struct {
	seen  map[string]struct{}
	order []string
}

func newNameSet() *nameSet {
	return &nameSet{seen: make(map[string]struct{})}
}

// add inserts name and reports whether it was new.
func (ns *nameSet) add(name string) bool {
	if _, ok := ns.seen[name]; ok {
		return false
	}
	ns.seen[name] = struct{}{}
	ns.order = append(ns.order, name)
	return true
}

func (ns *nameSet) has(name string) bool {
	_, ok := ns.seen[name]
	return ok
}

// pending is an accepted event waiting to be committed to its bucket.
type pending struct {
	day   int
	event Event
}

// Search enumerates every transit and/or eclipse of bodies inside w, keeps
// those observable from the configured site and groups them by day.
//
// Bodies are scanned in ascending name order. Within a day, transits come
// before eclipses and each kind keeps enumeration order. A body that never
// rises is recorded once in Result.NeverUp. Any other sky failure aborts the
// search.
func (s *Searcher) Search(bodies []Body, w Window) (*Result, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	sorted := slices.Clone(bodies)
	slices.SortStableFunc(sorted, func(a, b Body) int { return cmp.Compare(a.Name, b.Name) })

	transits := NewNights()
	eclipses := NewNights()
	neverUp := newNameSet()
	skipped := newNameSet()

	for _, b := range sorted {
		if s.progress != nil {
			s.progress(b.Name)
		}
		if neverUp.has(b.Name) || skipped.has(b.Name) {
			continue
		}
		if b.Duration <= 0 || b.Period <= 0 || b.Epoch == 0 {
			s.logger.Debug("skipping body without ephemeris", "body", b.Name,
				"period", b.Period, "epoch", b.Epoch, "duration", b.Duration)
			skipped.add(b.Name)
			continue
		}
		if n := EpochCount(b.Epoch, b.Period, w); n > s.opts.MaxEpochs {
			s.logger.Warn("skipping body", "body", b.Name, "epochs", n, "max_epochs", s.opts.MaxEpochs,
				"error", ErrTooManyEpochs)
			skipped.add(b.Name)
			continue
		}

		accepted, err := s.scanBody(b, w)
		if err != nil {
			var nu *astrometry.NeverUpError
			if errors.As(err, &nu) {
				if neverUp.add(b.Name) {
					s.logger.Info("body is never above the horizon at this observing location",
						"body", b.Name, "culmination_deg", nu.CulminationDeg)
				}
				continue
			}
			return nil, fmt.Errorf("search %s: %w", b.Name, err)
		}

		for _, p := range accepted {
			if p.event.Kind == Transit {
				transits.Add(p.day, p.event)
			} else {
				eclipses.Add(p.day, p.event)
			}
		}
	}

	nights := NewNights()
	nights.Merge(transits)
	nights.Merge(eclipses)
	nights.Prune()

	s.logger.Info("search complete",
		"bodies", len(sorted),
		"nights", nights.Len(),
		"events", nights.Count(),
		"never_up", len(neverUp.order),
		"skipped", len(skipped.order),
	)

	return &Result{
		Window:  w,
		Nights:  nights,
		NeverUp: neverUp.order,
		Skipped: skipped.order,
		Bodies:  len(sorted),
	}, nil
}

// scanBody evaluates every enabled event kind of one body. Nothing is
// committed unless the whole body scans without error.
func (s *Searcher) scanBody(b Body, w Window) ([]pending, error) {
	var out []pending
	half := b.Duration / 2

	for _, kind := range s.kinds() {
		for mid := range Epochs(kind, b.Epoch, b.Period, w) {
			vis, ok, err := s.filter.Observable(b, mid-half, mid+half)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			out = append(out, pending{
				day: DayKey(w, mid),
				event: Event{
					Body:         b.Name,
					Kind:         kind,
					Mid:          mid,
					HalfDuration: half,
					Ingress:      positionOf(vis.Ingress),
					Egress:       positionOf(vis.Egress),
				},
			})
		}
	}
	return out, nil
}

func (s *Searcher) kinds() []Kind {
	var ks []Kind
	if s.opts.Transits {
		ks = append(ks, Transit)
	}
	if s.opts.Eclipses {
		ks = append(ks, Eclipse)
	}
	return ks
}

// DayKey returns the bucket of an event at jd. Days are d = w.Start + k for
// k = 0, 1, ...; the event belongs to the d with d-0.5 < jd <= d+0.5 and the
// key is d truncated to an integer.
func DayKey(w Window, jd float64) int {
	k := math.Ceil(jd - w.Start - 0.5)
	for k > 0 && w.Start+k-0.5 >= jd {
		k--
	}
	for w.Start+k+0.5 < jd {
		k++
	}
	return int(math.Trunc(w.Start + k))
}
