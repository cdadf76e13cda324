package ports

import (
	"context"
	"time"

	"ContractsOrchestrator/internal/domain"
)

// ModelGateway runs exactly one round against a generative-language backend.
// Callers own turn sequencing; implementations never loop or retry.
type ModelGateway interface {
	Generate(ctx context.Context, turns []domain.Turn, opts domain.GenerateOptions) (domain.Generation, error)
}

// ContractStore persists normalized catalog notices keyed by notice id.
type ContractStore interface {
	UpsertContracts(ctx context.Context, contracts []domain.Contract) error
	GetContract(ctx context.Context, noticeID string) (*domain.Contract, error)
}

// AnalysisStore owns the analysis record lifecycle.
type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, in domain.NewAnalysis) (string, error)
	MarkSucceeded(ctx context.Context, id string, summary map[string]any) error
	MarkFailed(ctx context.Context, id string, reason string) error
	AttachJudge(ctx context.Context, id string, judge map[string]any, confidence *float64) error
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)
}

// AuditStore appends orchestration audit entries.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
}

// DocumentStore exposes user uploads namespaced by notice id.
type DocumentStore interface {
	List(ctx context.Context, prefix string, limit int) ([]string, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	PublicURL(path string) string
}

// Fetcher downloads a document as raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Catalog queries the external opportunity catalog.
type Catalog interface {
	Search(ctx context.Context, q domain.CatalogQuery) (domain.CatalogPage, error)
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// ToolContext is the per-request state handed to every tool handler.
type ToolContext struct {
	IdempotencyKey string
	Model          ModelGateway
}
