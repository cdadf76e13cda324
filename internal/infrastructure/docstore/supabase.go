package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/ports"
)

// SupabaseStore talks to a Supabase Storage compatible REST API.
type SupabaseStore struct {
	baseURL    string
	key        string
	bucket     string
	httpClient *http.Client
}

var _ ports.DocumentStore = (*SupabaseStore)(nil)

// NewSupabaseStore builds a store client; a nil client gets a 20s timeout.
func NewSupabaseStore(cfg config.StorageConfig, client *http.Client) (*SupabaseStore, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("document store misconfigured")
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/storage/v1",
		key:        cfg.ServiceKey,
		bucket:     cfg.Bucket,
		httpClient: client,
	}, nil
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy struct {
		Column string `json:"column"`
		Order  string `json:"order"`
	} `json:"sortBy"`
}

type listEntry struct {
	Name string  `json:"name"`
	ID   *string `json:"id"`
}

// List returns the full object paths directly under prefix, sorted by name.
// Folder placeholders (entries without an id) are skipped.
func (s *SupabaseStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	body := listRequest{Prefix: strings.TrimSuffix(prefix, "/"), Limit: limit}
	body.SortBy.Column = "name"
	body.SortBy.Order = "asc"

	var entries []listEntry
	if err := s.post(ctx, "/object/list/"+url.PathEscape(s.bucket), body, &entries); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	dir := body.Prefix
	if dir != "" {
		dir += "/"
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ID == nil || e.Name == "" {
			continue
		}
		paths = append(paths, dir+e.Name)
	}
	return paths, nil
}

// SignedURL returns a time-limited download link for path.
func (s *SupabaseStore) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		seconds = 60
	}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := s.post(ctx, "/object/sign/"+url.PathEscape(s.bucket)+"/"+escapePath(path), map[string]int{"expiresIn": seconds}, &out); err != nil {
		return "", fmt.Errorf("sign %s: %w", path, err)
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("sign %s: empty signed url", path)
	}
	if strings.HasPrefix(out.SignedURL, "http://") || strings.HasPrefix(out.SignedURL, "https://") {
		return out.SignedURL, nil
	}
	return s.baseURL + "/" + strings.TrimPrefix(out.SignedURL, "/"), nil
}

// PublicURL returns the unauthenticated link for path in a public bucket.
func (s *SupabaseStore) PublicURL(path string) string {
	return s.baseURL + "/object/public/" + url.PathEscape(s.bucket) + "/" + escapePath(path)
}

func (s *SupabaseStore) post(ctx context.Context, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("storage error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func escapePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
