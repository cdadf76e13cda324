package docstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ContractsOrchestrator/internal/ports"
)

const defaultMaxFetchBytes = 25 << 20

// HTTPFetcher downloads documents over HTTP(S).
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

var _ ports.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher wires an HTTP client; maxBytes <= 0 selects 25 MiB.
func NewHTTPFetcher(client *http.Client, maxBytes int64) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxFetchBytes
	}
	return &HTTPFetcher{client: client, maxBytes: maxBytes}
}

// Fetch returns the body of url. Non-2xx responses and oversized bodies are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ContractsOrchestrator/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s returned %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("document %s exceeds %d bytes", url, f.maxBytes)
	}
	return body, nil
}
