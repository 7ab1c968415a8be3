package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/events", "/api/v1/events"},
		{"/api/v1/catalog", "/api/v1/catalog"},
		{"/api/v1/planets", "/api/v1/planets"},
		{"/api/v1/runs", "/api/v1/runs"},

		// Planet lookups collapse to one label.
		{"/api/v1/planets/HD 189733 b", "/api/v1/planets/{name}"},
		{"/api/v1/planets/WASP-12%20b", "/api/v1/planets/{name}"},
		{"/assets/ephem.css", "/assets/{file}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/planets/a/b", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMiddlewareCountsNormalizedRoute(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "418"))
	for _, p := range []string{"/x", "/y", "/z"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", http.MethodGet, "418"))
	if after-before != 3 {
		t.Errorf("counter grew by %v, want 3", after-before)
	}
}

func TestObserveSearch(t *testing.T) {
	before := testutil.ToFloat64(searchesTotal.WithLabelValues("ok"))
	ObserveSearch(SearchStats{Duration: time.Second, Transits: 4, Eclipses: 1, Nights: 3, Bodies: 20, NeverUp: 2})

	if got := testutil.ToFloat64(searchesTotal.WithLabelValues("ok")) - before; got != 1 {
		t.Errorf("searches counter grew by %v", got)
	}
	if got := testutil.ToFloat64(eventsFound.WithLabelValues("transit")); got != 4 {
		t.Errorf("transit gauge = %v", got)
	}
	if got := testutil.ToFloat64(lastSearchBodies.WithLabelValues("never_up")); got != 2 {
		t.Errorf("never_up gauge = %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	SetCatalog(123, 36*time.Hour)
	path := filepath.Join(t.TempDir(), "transitephem.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "transitephem_catalog_planets 123") {
		t.Errorf("textfile missing catalog gauge:\n%s", data)
	}
}
