package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(next)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"events without token", "/api/v1/events", "", http.StatusUnauthorized},
		{"events with token", "/api/v1/events", "Bearer s3cret", http.StatusNoContent},
		{"events with wrong token", "/api/v1/events", "Bearer nope", http.StatusUnauthorized},
		{"token without scheme", "/api/v1/events", "s3cret", http.StatusUnauthorized},
		{"lowercase scheme", "/api/v1/events", "bearer s3cret", http.StatusNoContent},
		{"empty token", "/api/v1/events", "Bearer ", http.StatusUnauthorized},
		{"report page", "/", "", http.StatusUnauthorized},
		{"runs", "/api/v1/runs", "", http.StatusUnauthorized},
		{"health probe", "/healthz", "", http.StatusNoContent},
		{"catalog", "/api/v1/catalog", "", http.StatusNoContent},
		{"planet", "/api/v1/planets/WASP-12 b", "", http.StatusNoContent},
		{"asset", "/assets/ephem.css", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(Config{})(next)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
