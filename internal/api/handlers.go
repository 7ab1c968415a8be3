package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/bmorris3/transitephem/internal/cache"
	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/config"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/planner"
	"github.com/bmorris3/transitephem/internal/report"
	"github.com/bmorris3/transitephem/internal/storage"
	"github.com/bmorris3/transitephem/internal/transform"
	"github.com/bmorris3/transitephem/web"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	upcomingDays     = 60
	upcomingMax      = 5
)

type handlers struct {
	deps    Deps
	maxDays int
	limiter *searchLimiter
	proxy   bool
	logger  *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// windowKey reads the start and days query parameters. start defaults to
// today (UT) and days to the cache's default window.
func (h *handlers) windowKey(r *http.Request) (cache.Key, error) {
	days := h.deps.Results.DefaultDays()
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > h.maxDays {
			return cache.Key{}, errors.New("invalid days parameter, must be 1-" + strconv.Itoa(h.maxDays))
		}
		days = n
	}
	start := time.Now().UTC()
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := config.ParseDate(v)
		if err != nil {
			return cache.Key{}, errors.New("invalid start parameter, want YYYY-MM-DD")
		}
		start = t
	}
	return cache.KeyFor(start, days), nil
}

// search runs or looks up the plan for the request's window, writing the
// error response itself when it fails.
func (h *handlers) search(w http.ResponseWriter, r *http.Request) (*cache.Entry, bool) {
	key, err := h.windowKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	ip := clientIP(r, h.proxy)
	if !h.limiter.acquire(ip) {
		h.logger.Warn("search rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent searches")
		return nil, false
	}
	defer h.limiter.release(ip)

	entry, err := h.deps.Results.Get(r.Context(), key)
	switch {
	case errors.Is(err, planner.ErrNoCatalog):
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded yet")
		return nil, false
	case errors.Is(err, ephem.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	case err != nil:
		h.logger.Error("search failed", "start", key.Start, "days", key.Days, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return nil, false
	}
	return entry, true
}

func (h *handlers) buildReport(entry *cache.Entry) *report.Report {
	opts := h.deps.Report
	opts.RunID = entry.Plan.ID
	opts.Generated = entry.GeneratedAt
	return report.Build(entry.Plan.Result, entry.Plan.Records, opts)
}

type eventJSON struct {
	ephem.Event
	IngressUT  time.Time `json:"ingress_ut"`
	EgressUT   time.Time `json:"egress_ut"`
	GapMinutes float64   `json:"gap_minutes,omitempty"`
}

type nightJSON struct {
	Day     int         `json:"day"`
	Date    string      `json:"date"`
	Sunset  *time.Time  `json:"sunset,omitempty"`
	Sunrise *time.Time  `json:"sunrise,omitempty"`
	Events  []eventJSON `json:"events"`
}

type eventsResponse struct {
	RunID            string       `json:"run_id"`
	Window           ephem.Window `json:"window"`
	Start            time.Time    `json:"start"`
	End              time.Time    `json:"end"`
	GeneratedAt      time.Time    `json:"generated_at"`
	CatalogFetchedAt time.Time    `json:"catalog_fetched_at"`
	Transits         int          `json:"transits"`
	Eclipses         int          `json:"eclipses"`
	Nights           []nightJSON  `json:"nights"`
	NeverUp          []string     `json:"never_up"`
	Skipped          []string     `json:"skipped"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.search(w, r)
	if !ok {
		return
	}
	rep := h.buildReport(entry)

	resp := eventsResponse{
		RunID:            entry.Plan.ID,
		Window:           rep.Window,
		Start:            rep.Start,
		End:              rep.End,
		GeneratedAt:      entry.GeneratedAt,
		CatalogFetchedAt: entry.Plan.FetchedAt,
		Transits:         rep.Transits,
		Eclipses:         rep.Eclipses,
		Nights:           make([]nightJSON, 0, len(rep.Nights)),
		NeverUp:          nonNil(entry.Plan.Result.NeverUp),
		Skipped:          nonNil(entry.Plan.Result.Skipped),
	}
	for _, n := range rep.Nights {
		nj := nightJSON{
			Day:     n.Day,
			Date:    n.Date.Format(time.DateOnly),
			Sunset:  optionalTime(n.Sunset),
			Sunrise: optionalTime(n.Sunrise),
		}
		for _, row := range n.Rows {
			nj.Events = append(nj.Events, eventJSON{
				Event:      row.Event,
				IngressUT:  row.Ingress(),
				EgressUT:   row.Egress(),
				GapMinutes: row.Gap.Minutes(),
			})
		}
		resp.Nights = append(resp.Nights, nj)
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.search(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, h.buildReport(entry), "/assets/"); err != nil {
		h.logger.Error("rendering report failed", "error", err)
	}
}

func (h *handlers) asset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if !slices.Contains(web.Assets, name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFileFS(w, r, web.Content, name)
}

type catalogResponse struct {
	Source     string      `json:"source"`
	FetchedAt  time.Time   `json:"fetched_at"`
	AgeSeconds float64     `json:"age_seconds"`
	Planets    int         `json:"planets"`
	Selected   int         `json:"selected"`
	Band       string      `json:"band"`
	MagLimit   float64     `json:"mag_limit"`
	DepthLimit float64     `json:"depth_limit"`
	Cache      cache.Stats `json:"cache"`
}

// dataset writes 503 and returns nil when no catalog is loaded.
func (h *handlers) dataset(w http.ResponseWriter) *catalog.Dataset {
	ds := h.deps.Catalog.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not loaded yet")
	}
	return ds
}

func (h *handlers) catalog(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset(w)
	if ds == nil {
		return
	}
	sel := h.deps.Selection
	writeJSON(w, http.StatusOK, catalogResponse{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt,
		AgeSeconds: h.deps.Catalog.Age(time.Now()).Seconds(),
		Planets:    ds.Len(),
		Selected:   len(catalog.Select(ds.Records, sel)),
		Band:       sel.Band,
		MagLimit:   sel.MagLimit,
		DepthLimit: sel.DepthLimit,
		Cache:      h.deps.Results.Stats(),
	})
}

func (h *handlers) planets(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset(w)
	if ds == nil {
		return
	}
	records := catalog.Select(ds.Records, h.deps.Selection)
	if records == nil {
		records = []catalog.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"planets": records,
	})
}

type planetResponse struct {
	catalog.Record
	Selected     bool        `json:"selected"`
	NextTransits []time.Time `json:"next_transits"`
}

func (h *handlers) planet(w http.ResponseWriter, r *http.Request) {
	ds := h.dataset(w)
	if ds == nil {
		return
	}
	name := r.PathValue("name")
	rec, ok := ds.Records[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown planet")
		return
	}

	now := transform.JulianDate(time.Now())
	next := []time.Time{}
	for mid := range ephem.Epochs(ephem.Transit, rec.Epoch, rec.Period, ephem.Window{Start: now, End: now + upcomingDays}) {
		if len(next) == upcomingMax {
			break
		}
		next = append(next, transform.TimeFromJulian(mid).UTC().Truncate(time.Second))
	}

	writeJSON(w, http.StatusOK, planetResponse{
		Record:       rec,
		Selected:     h.deps.Selection.Accept(rec),
		NextTransits: next,
	})
}

func (h *handlers) runs(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeError(w, http.StatusBadRequest, "invalid limit parameter, must be 1-"+strconv.Itoa(maxRunsLimit))
			return
		}
		limit = n
	}
	runs, err := h.deps.Runs.RecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
