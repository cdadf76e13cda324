package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

const (
	defaultSyncLimit = 50
	maxSyncLimit     = 1000
	defaultWindow    = 29 * 24 * time.Hour
)

// SyncRequest is one catalog ingestion call. Empty fields take defaults:
// the trailing 30 days, 50 records, offset 0.
type SyncRequest struct {
	PostedFrom string `json:"postedFrom,omitempty"`
	PostedTo   string `json:"postedTo,omitempty"`
	Limit      *int   `json:"limit,omitempty"`
	Offset     *int   `json:"offset,omitempty"`
	Keywords   string `json:"keywords,omitempty"`
	NAICS      string `json:"naics,omitempty"`
	State      string `json:"state,omitempty"`
}

// SyncResult echoes the upstream total and the normalized page.
type SyncResult struct {
	Total int             `json:"total"`
	Items []domain.Notice `json:"items"`
}

// CatalogSync pulls catalog pages and upserts them into the contracts table.
type CatalogSync struct {
	catalog   ports.Catalog
	contracts ports.ContractStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewCatalogSync wires the catalog client and the contract store. A nil
// catalog makes every Run fail with domain.ErrNotConfigured.
func NewCatalogSync(catalog ports.Catalog, contracts ports.ContractStore, logger *slog.Logger) *CatalogSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogSync{catalog: catalog, contracts: contracts, logger: logger, now: time.Now}
}

// Query resolves req into a bounded catalog query.
func (s *CatalogSync) Query(req SyncRequest) (domain.CatalogQuery, error) {
	now := s.now().UTC()
	q := domain.CatalogQuery{
		PostedFrom: now.Add(-defaultWindow),
		PostedTo:   now,
		Limit:      defaultSyncLimit,
		Keywords:   req.Keywords,
		NAICS:      req.NAICS,
		State:      req.State,
	}

	if req.PostedFrom != "" {
		t := domain.ParseTimestamp(&req.PostedFrom)
		if t == nil {
			return domain.CatalogQuery{}, domain.NewToolError(domain.ErrInvalidArguments, "postedFrom is not a date: %q", req.PostedFrom)
		}
		q.PostedFrom = *t
	}
	if req.PostedTo != "" {
		t := domain.ParseTimestamp(&req.PostedTo)
		if t == nil {
			return domain.CatalogQuery{}, domain.NewToolError(domain.ErrInvalidArguments, "postedTo is not a date: %q", req.PostedTo)
		}
		q.PostedTo = *t
	}
	if req.Limit != nil {
		q.Limit = min(max(*req.Limit, 1), maxSyncLimit)
	}
	if req.Offset != nil {
		q.Offset = max(*req.Offset, 0)
	}
	return q, nil
}

// Run fetches one page, upserts every record that has a notice id and
// returns the normalized page.
func (s *CatalogSync) Run(ctx context.Context, req SyncRequest) (SyncResult, error) {
	if s.catalog == nil {
		return SyncResult{}, fmt.Errorf("%w: missing SAM_API_KEY", domain.ErrNotConfigured)
	}
	q, err := s.Query(req)
	if err != nil {
		return SyncResult{}, err
	}

	page, err := s.catalog.Search(ctx, q)
	if err != nil {
		return SyncResult{}, fmt.Errorf("search catalog: %w", err)
	}

	rows := make([]domain.Contract, 0, len(page.Notices))
	for _, n := range page.Notices {
		if c, ok := n.Contract(); ok {
			rows = append(rows, c)
		}
	}
	if len(rows) > 0 {
		if err := s.contracts.UpsertContracts(ctx, rows); err != nil {
			return SyncResult{}, fmt.Errorf("upsert contracts: %w", err)
		}
	}

	s.logger.Info("catalog synced",
		"posted_from", q.PostedFrom.Format(time.DateOnly),
		"posted_to", q.PostedTo.Format(time.DateOnly),
		"total", page.Total,
		"received", len(page.Notices),
		"stored", len(rows),
	)

	items := page.Notices
	if items == nil {
		items = []domain.Notice{}
	}
	return SyncResult{Total: page.Total, Items: items}, nil
}
