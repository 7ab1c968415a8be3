// Package metrics exposes Prometheus metrics for searches, the catalog, the
// notifier and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitephem_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transitephem_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitephem_searches_total",
			Help: "Event searches run, by result.",
		},
		[]string{"result"},
	)

	searchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transitephem_search_duration_seconds",
			Help:    "Wall time of one event search.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	eventsFound = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transitephem_last_search_events",
			Help: "Observable events found by the last search, by kind.",
		},
		[]string{"kind"},
	)

	lastSearchBodies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transitephem_last_search_bodies",
			Help: "Bodies in the last search, by outcome (searched, never_up, skipped).",
		},
		[]string{"outcome"},
	)

	lastSearchNights = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transitephem_last_search_nights",
			Help: "Nights with at least one observable event in the last search.",
		},
	)

	catalogPlanets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transitephem_catalog_planets",
			Help: "Planets in the loaded catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transitephem_catalog_age_seconds",
			Help: "Age of the loaded catalog download.",
		},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitephem_result_cache_lookups_total",
			Help: "Search result cache lookups, by result (hit, miss).",
		},
		[]string{"result"},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transitephem_result_cache_entries",
			Help: "Search results held in the cache.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transitephem_result_cache_evictions_total",
			Help: "Search results evicted from the cache.",
		},
	)

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitephem_now_messages_total",
			Help: "Transiting-now messages, by result (composed, sent, failed, expired).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		searchesTotal,
		searchDurationSeconds,
		eventsFound,
		lastSearchBodies,
		lastSearchNights,
		catalogPlanets,
		catalogAgeSeconds,
		cacheLookupsTotal,
		cacheEntries,
		cacheEvictionsTotal,
		messagesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// SearchStats summarizes one search for the metrics.
type SearchStats struct {
	Duration time.Duration
	Transits int
	Eclipses int
	Nights   int
	Bodies   int
	NeverUp  int
	Skipped  int
}

// ObserveSearch records a finished search.
func ObserveSearch(s SearchStats) {
	searchesTotal.WithLabelValues("ok").Inc()
	searchDurationSeconds.Observe(s.Duration.Seconds())
	eventsFound.WithLabelValues("transit").Set(float64(s.Transits))
	eventsFound.WithLabelValues("eclipse").Set(float64(s.Eclipses))
	lastSearchNights.Set(float64(s.Nights))
	lastSearchBodies.WithLabelValues("searched").Set(float64(s.Bodies))
	lastSearchBodies.WithLabelValues("never_up").Set(float64(s.NeverUp))
	lastSearchBodies.WithLabelValues("skipped").Set(float64(s.Skipped))
}

// SearchFailed counts a search that returned an error.
func SearchFailed() {
	searchesTotal.WithLabelValues("error").Inc()
}

// SetCatalog records the size and age of the loaded catalog.
func SetCatalog(planets int, age time.Duration) {
	catalogPlanets.Set(float64(planets))
	catalogAgeSeconds.Set(age.Seconds())
}

// IncCacheHits counts a result cache hit.
func IncCacheHits() { cacheLookupsTotal.WithLabelValues("hit").Inc() }

// IncCacheMisses counts a result cache miss.
func IncCacheMisses() { cacheLookupsTotal.WithLabelValues("miss").Inc() }

// SetCacheEntries sets the number of cached results.
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }

// AddCacheEvictions counts evicted results.
func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }

// MessageComposed counts a stored transiting-now message.
func MessageComposed() { messagesTotal.WithLabelValues("composed").Inc() }

// MessageSent counts a delivered message.
func MessageSent() { messagesTotal.WithLabelValues("sent").Inc() }

// MessageFailed counts a delivery failure.
func MessageFailed() { messagesTotal.WithLabelValues("failed").Inc() }

// MessagesExpired counts messages dropped unsent after their transit ended.
func MessagesExpired(n int) { messagesTotal.WithLabelValues("expired").Add(float64(n)) }

// knownRoutes are the paths reported as their own label.
var knownRoutes = map[string]bool{
	"/":               true,
	"/healthz":        true,
	"/readyz":         true,
	"/metrics":        true,
	"/api/v1/events":  true,
	"/api/v1/catalog": true,
	"/api/v1/planets": true,
	"/api/v1/runs":    true,
}

// normalizeRoute maps a request path to a bounded set of metric labels.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/planets/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/planets/{name}"
	}
	if strings.HasPrefix(path, "/assets/") {
		return "/assets/{file}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
