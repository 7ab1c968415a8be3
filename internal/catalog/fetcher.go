package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultSourceURL is the exoplanets.org CSV export.
const DefaultSourceURL = "http://www.exoplanets.org/csv-files/exoplanets.csv"

// maxBodyBytes bounds a single download.
const maxBodyBytes = 64 << 20

// Fetcher retrieves the raw catalog CSV.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for sourceURL. A zero timeout means 60s.
func NewFetcher(sourceURL string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		sourceURL:  sourceURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch downloads the catalog.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("catalog from %s exceeds %d byte limit", f.sourceURL, maxBodyBytes)
	}

	f.logger.Info("downloaded catalog", "url", f.sourceURL, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}
