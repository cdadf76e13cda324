package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
	"ContractsOrchestrator/internal/schema"
	"ContractsOrchestrator/internal/usecase"
)

// Tool names as declared to the model.
const (
	SearchContracts     = "searchContracts"
	ExtractSolicitation = "extractSolicitation"
	ListContractDocs    = "listContractDocs"
	SummarizeDocs       = "summarizeDocs"
	JudgeBundle         = "judgeBundle"
)

// Analyzer runs the summarize -> judge pipeline.
type Analyzer interface {
	Summarize(ctx context.Context, in usecase.SummarizeInput, tc ports.ToolContext) (usecase.SummarizeResult, error)
	Judge(ctx context.Context, analysisID string, tc ports.ToolContext) (usecase.JudgeResult, error)
}

// SolicitationExtractor turns solicitation text into structured fields.
type SolicitationExtractor interface {
	Extract(ctx context.Context, text string, wantSubPackages bool, tc ports.ToolContext) (usecase.ExtractResult, error)
}

// DocLister merges catalog attachments with user uploads.
type DocLister interface {
	List(ctx context.Context, noticeID string) (usecase.ContractDocs, error)
}

// Services are the use cases behind the default tool set.
type Services struct {
	Analyzer  Analyzer
	Extractor SolicitationExtractor
	Documents DocLister
}

// SearchArgs are the arguments of searchContracts.
type SearchArgs struct {
	Query string  `json:"query" jsonschema:"required" jsonschema_description:"Free-text search over contract titles and descriptions."`
	State *string `json:"state,omitempty" jsonschema_description:"Two-letter state of the place of performance."`
	NAICS *string `json:"naics,omitempty" jsonschema_description:"NAICS code filter."`
}

// ExtractArgs are the arguments of extractSolicitation.
type ExtractArgs struct {
	Text            string `json:"text" jsonschema:"required" jsonschema_description:"Raw solicitation text or HTML."`
	WantSubPackages *bool  `json:"wantSubPackages,omitempty" jsonschema_description:"Also list implied subcontractor trade packages."`
}

// ListDocsArgs are the arguments of listContractDocs.
type ListDocsArgs struct {
	NoticeID string `json:"noticeId" jsonschema:"required" jsonschema_description:"SAM.gov notice id."`
}

// SummarizeArgs are the arguments of summarizeDocs.
type SummarizeArgs struct {
	NoticeID            string   `json:"noticeId" jsonschema:"required" jsonschema_description:"SAM.gov notice id."`
	Selected            []string `json:"selected" jsonschema:"required" jsonschema_description:"Document URLs or store paths to summarize."`
	ContractDescription *string  `json:"contractDescription,omitempty" jsonschema_description:"Free-text contract description."`
}

// JudgeArgs are the arguments of judgeBundle.
type JudgeArgs struct {
	AnalysisID string `json:"analysisId" jsonschema:"required" jsonschema_description:"Id returned by summarizeDocs."`
}

// SearchHit is one demo search result.
type SearchHit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	State string `json:"state"`
	NAICS string `json:"naics"`
	URL   string `json:"url"`
}

// SearchResult is the searchContracts payload.
type SearchResult struct {
	IdempotencyKey string      `json:"idempotencyKey,omitempty"`
	Results        []SearchHit `json:"results"`
	Count          int         `json:"count"`
}

// NewDefaultRegistry registers the five contract tools.
func NewDefaultRegistry(svc Services) *Registry {
	r := NewRegistry()
	r.Register(define[SearchArgs](SearchContracts,
		"Mocked search over contracts (no DB yet).",
		searchContracts))
	r.Register(define[ExtractArgs](ExtractSolicitation,
		"Extract structured fields from raw solicitation text. Return strictly valid JSON (no prose).",
		extractSolicitation(svc.Extractor)))
	r.Register(define[ListDocsArgs](ListContractDocs,
		"List PDFs for a given SAM.gov notice id plus any user-uploaded docs for that contract.",
		listContractDocs(svc.Documents)))
	r.Register(define[SummarizeArgs](SummarizeDocs,
		"Summarize selected PDFs and contract description into a structured JSON summary.",
		summarizeDocs(svc.Analyzer)))
	r.Register(define[JudgeArgs](JudgeBundle,
		"Classify summary into prime vs subcontractor needs; return confidence and rationale.",
		judgeBundle(svc.Analyzer)))
	return r
}

func define[T any](name, description string, run Handler) Definition {
	props, required := Parameters[T]()
	return Definition{Name: name, Description: description, Properties: props, Required: required, Run: run}
}

func decode[T any](name string, raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, domain.NewToolError(domain.ErrInvalidArguments, "%s: invalid arguments: %v", name, err).WithCause(err)
	}
	return v, nil
}

func searchContracts(_ context.Context, raw json.RawMessage, tc ports.ToolContext) (any, error) {
	var candidate any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return nil, domain.NewToolError(domain.ErrInvalidArguments, "Invalid searchContracts args: %v", err)
	}
	if res := schema.SearchArgs.Validate(candidate); !res.Valid {
		msgs := make([]string, 0, len(res.Errors))
		for _, fe := range res.Errors {
			msgs = append(msgs, fe.Location+" "+fe.Message)
		}
		return nil, domain.NewToolError(domain.ErrInvalidArguments, "Invalid searchContracts args: %s", strings.Join(msgs, "; ")).
			WithDetails(res.Errors)
	}

	args, err := decode[SearchArgs](SearchContracts, raw)
	if err != nil {
		return nil, err
	}
	hit := SearchHit{
		ID:    "demo-123",
		Title: fmt.Sprintf("Demo contract for %q", args.Query),
		State: "UT",
		NAICS: "238990",
		URL:   "https://example.com/demo-contract",
	}
	if args.State != nil {
		hit.State = *args.State
	}
	if args.NAICS != nil {
		hit.NAICS = *args.NAICS
	}
	return SearchResult{IdempotencyKey: tc.IdempotencyKey, Results: []SearchHit{hit}, Count: 1}, nil
}

func extractSolicitation(svc SolicitationExtractor) Handler {
	return func(ctx context.Context, raw json.RawMessage, tc ports.ToolContext) (any, error) {
		args, err := decode[ExtractArgs](ExtractSolicitation, raw)
		if err != nil {
			return nil, err
		}
		return svc.Extract(ctx, args.Text, args.WantSubPackages != nil && *args.WantSubPackages, tc)
	}
}

func listContractDocs(svc DocLister) Handler {
	return func(ctx context.Context, raw json.RawMessage, _ ports.ToolContext) (any, error) {
		args, err := decode[ListDocsArgs](ListContractDocs, raw)
		if err != nil {
			return nil, err
		}
		return svc.List(ctx, args.NoticeID)
	}
}

func summarizeDocs(svc Analyzer) Handler {
	return func(ctx context.Context, raw json.RawMessage, tc ports.ToolContext) (any, error) {
		args, err := decode[SummarizeArgs](SummarizeDocs, raw)
		if err != nil {
			return nil, err
		}
		in := usecase.SummarizeInput{NoticeID: args.NoticeID, Selected: args.Selected}
		if args.ContractDescription != nil {
			in.ContractDescription = *args.ContractDescription
		}
		return svc.Summarize(ctx, in, tc)
	}
}

func judgeBundle(svc Analyzer) Handler {
	return func(ctx context.Context, raw json.RawMessage, tc ports.ToolContext) (any, error) {
		args, err := decode[JudgeArgs](JudgeBundle, raw)
		if err != nil {
			return nil, err
		}
		return svc.Judge(ctx, args.AnalysisID, tc)
	}
}
