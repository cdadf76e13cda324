package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

// SAMClient queries the SAM.gov opportunities v2 search API.
type SAMClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

var _ ports.Catalog = (*SAMClient)(nil)

// NewSAMClient wires an HTTP client and a request limiter from configuration.
func NewSAMClient(cfg config.CatalogConfig, client *http.Client) (*SAMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing SAM_API_KEY")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog base url is empty")
	}
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &SAMClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

type searchResponse struct {
	TotalRecords      json.Number       `json:"totalRecords"`
	OpportunitiesData []json.RawMessage `json:"opportunitiesData"`
}

// Search runs one page query and normalizes every record. Records that are
// not JSON objects are skipped.
func (c *SAMClient) Search(ctx context.Context, q domain.CatalogQuery) (domain.CatalogPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.CatalogPage{}, fmt.Errorf("catalog rate limit: %w", err)
	}

	endpoint, err := c.buildURL(q)
	if err != nil {
		return domain.CatalogPage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.CatalogPage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.CatalogPage{}, fmt.Errorf("request catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return domain.CatalogPage{}, &domain.UpstreamError{Service: "SAM.gov", Status: resp.StatusCode, Body: string(body)}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.CatalogPage{}, fmt.Errorf("decode catalog response: %w", err)
	}

	total, _ := strconv.Atoi(decoded.TotalRecords.String())
	page := domain.CatalogPage{Total: total, Notices: make([]domain.Notice, 0, len(decoded.OpportunitiesData))}
	for _, raw := range decoded.OpportunitiesData {
		n, err := Normalize(raw)
		if err != nil {
			continue
		}
		page.Notices = append(page.Notices, n)
	}
	return page, nil
}

func (c *SAMClient) buildURL(q domain.CatalogQuery) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse catalog url: %w", err)
	}
	params := u.Query()
	params.Set("api_key", c.apiKey)
	params.Set("postedFrom", FormatDate(q.PostedFrom))
	params.Set("postedTo", FormatDate(q.PostedTo))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if v := strings.TrimSpace(q.Keywords); v != "" {
		params.Set("title", v)
	}
	if v := strings.TrimSpace(q.NAICS); v != "" {
		params.Set("ncode", v)
	}
	if v := strings.TrimSpace(q.State); v != "" {
		params.Set("state", v)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// FormatDate renders t as MM/DD/YYYY, the format the search API expects.
func FormatDate(t time.Time) string {
	return t.UTC().Format("01/02/2006")
}
