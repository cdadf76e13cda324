package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
	"ContractsOrchestrator/internal/repair"
	"ContractsOrchestrator/internal/schema"
)

// EscalationThreshold is the judge confidence below which a bundle is flagged
// for human review.
const EscalationThreshold = 0.55

// AnalysisDeps wires the driven adapters of the summarize -> judge pipeline.
type AnalysisDeps struct {
	Analyses     ports.AnalysisStore
	Documents    ports.DocumentStore
	Fetcher      ports.Fetcher
	PrivateDocs  bool
	SignedURLTTL time.Duration
	Logger       *slog.Logger
}

// AnalysisPipeline summarizes selected documents into an Analysis Record and
// classifies stored summaries.
type AnalysisPipeline struct {
	analyses    ports.AnalysisStore
	documents   ports.DocumentStore
	fetcher     ports.Fetcher
	privateDocs bool
	signedTTL   time.Duration
	logger      *slog.Logger
}

// NewAnalysisPipeline constructs the pipeline.
func NewAnalysisPipeline(deps AnalysisDeps) *AnalysisPipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AnalysisPipeline{
		analyses:    deps.Analyses,
		documents:   deps.Documents,
		fetcher:     deps.Fetcher,
		privateDocs: deps.PrivateDocs,
		signedTTL:   ttl,
		logger:      logger,
	}
}

// SummarizeInput selects the documents of one notice.
type SummarizeInput struct {
	NoticeID            string
	Selected            []string
	ContractDescription string
}

// SummarizeResult is returned to the caller after a successful run. Summary
// is the validated model output; the stored copy also carries referenced_files.
type SummarizeResult struct {
	AnalysisID      string         `json:"analysisId"`
	Summary         map[string]any `json:"summary"`
	ReferencedFiles []string       `json:"referenced_files"`
}

// Summarize creates a running record, fetches the selected documents
// concurrently, asks the model for a schema-valid summary and records the
// outcome. Any failure after the record exists marks it failed and is
// reported as domain.ErrSummarizationFailed.
func (p *AnalysisPipeline) Summarize(ctx context.Context, in SummarizeInput, tc ports.ToolContext) (SummarizeResult, error) {
	if strings.TrimSpace(in.NoticeID) == "" || len(in.Selected) == 0 {
		return SummarizeResult{}, domain.NewToolError(domain.ErrMissingRequiredInput, "noticeId and selected[] required")
	}

	id, err := p.analyses.CreateAnalysis(ctx, domain.NewAnalysis{
		NoticeID:       in.NoticeID,
		DocRefs:        in.Selected,
		IdempotencyKey: tc.IdempotencyKey,
	})
	if err != nil {
		return SummarizeResult{}, fmt.Errorf("create analysis: %w", err)
	}
	logger := p.logger.With("analysis_id", id, "notice_id", in.NoticeID)

	result, err := p.summarize(ctx, id, in, tc, logger)
	if err != nil {
		// the record must leave running even if the caller went away
		if markErr := p.analyses.MarkFailed(context.WithoutCancel(ctx), id, err.Error()); markErr != nil {
			logger.Error("mark analysis failed", "error", markErr)
		}
		logger.Warn("summarize failed", "error", err)
		return SummarizeResult{}, domain.NewToolError(domain.ErrSummarizationFailed, "summarizeDocs failed").
			WithDetails(domain.DetailsOf(err)).
			WithCause(err)
	}
	return result, nil
}

func (p *AnalysisPipeline) summarize(ctx context.Context, id string, in SummarizeInput, tc ports.ToolContext, logger *slog.Logger) (SummarizeResult, error) {
	generate, err := generator(tc.Model, summaryInstruction())
	if err != nil {
		return SummarizeResult{}, err
	}

	bodies := p.fetchAll(ctx, in.Selected, logger)

	parts := make([]domain.Part, 0, len(in.Selected)+1)
	referenced := make([]string, 0, len(in.Selected))
	for i, ref := range in.Selected {
		if bodies[i] == nil {
			continue
		}
		parts = append(parts, domain.InlinePart("application/pdf", bodies[i]))
		referenced = append(referenced, ref)
	}
	if desc := strings.TrimSpace(in.ContractDescription); desc != "" {
		parts = append(parts, domain.TextPart("Contract description:\n"+in.ContractDescription))
	}
	if len(parts) == 0 {
		return SummarizeResult{}, errors.New("no selected document could be fetched and no description was given")
	}

	payload, err := repair.Attempt(ctx, generate, []domain.Turn{{Role: domain.RoleUser, Parts: parts}}, schema.Summary, repair.WithLogger(logger))
	if err != nil {
		return SummarizeResult{}, err
	}

	stored := make(map[string]any, len(payload.Value)+1)
	for k, v := range payload.Value {
		stored[k] = v
	}
	stored["referenced_files"] = referenced

	if err := p.analyses.MarkSucceeded(ctx, id, stored); err != nil {
		return SummarizeResult{}, fmt.Errorf("store summary: %w", err)
	}
	logger.Info("summary stored", "documents", len(referenced), "model_calls", payload.Calls)

	return SummarizeResult{AnalysisID: id, Summary: payload.Value, ReferencedFiles: referenced}, nil
}

// fetchAll downloads every ref concurrently. The result is index-aligned with
// refs; a nil entry means the document was dropped.
func (p *AnalysisPipeline) fetchAll(ctx context.Context, refs []string, logger *slog.Logger) [][]byte {
	bodies := make([][]byte, len(refs))
	if p.fetcher == nil {
		return bodies
	}

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			url, err := p.resolve(ctx, ref)
			if err != nil {
				logger.Warn("resolve document", "ref", ref, "error", err)
				return
			}
			body, err := p.fetcher.Fetch(ctx, url)
			if err != nil {
				logger.Warn("fetch document", "ref", ref, "error", err)
				return
			}
			bodies[i] = body
		}(i, ref)
	}
	wg.Wait()
	return bodies
}

// resolve turns a selection entry into a downloadable URL. Absolute links are
// used as-is; anything else is a document store path.
func (p *AnalysisPipeline) resolve(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "http") {
		return ref, nil
	}
	if p.documents == nil {
		return "", fmt.Errorf("%w: document store", domain.ErrNotConfigured)
	}
	if p.privateDocs {
		return p.documents.SignedURL(ctx, ref, p.signedTTL)
	}
	return p.documents.PublicURL(ref), nil
}

// JudgeResult is the classification of one stored summary.
type JudgeResult struct {
	AnalysisID string         `json:"analysisId"`
	Judge      map[string]any `json:"judge"`
	Escalated  bool           `json:"escalated"`
}

// Judge classifies the stored summary of analysisID into prime and
// subcontractor work and attaches the result to the record.
func (p *AnalysisPipeline) Judge(ctx context.Context, analysisID string, tc ports.ToolContext) (JudgeResult, error) {
	if strings.TrimSpace(analysisID) == "" {
		return JudgeResult{}, domain.NewToolError(domain.ErrMissingRequiredInput, "analysisId required")
	}

	record, err := p.analyses.GetAnalysis(ctx, analysisID)
	if errors.Is(err, domain.ErrNotFound) {
		return JudgeResult{}, domain.NewToolError(domain.ErrNotFound, "No summary found").WithCause(err)
	}
	if err != nil {
		return JudgeResult{}, fmt.Errorf("load analysis: %w", err)
	}
	if record.Summary == nil {
		return JudgeResult{}, domain.NewToolError(domain.ErrNotFound, "No summary found")
	}

	generate, err := generator(tc.Model, judgeInstruction())
	if err != nil {
		return JudgeResult{}, err
	}
	summary, err := json.Marshal(record.Summary)
	if err != nil {
		return JudgeResult{}, fmt.Errorf("marshal summary: %w", err)
	}

	logger := p.logger.With("analysis_id", analysisID)
	payload, err := repair.Attempt(ctx, generate, []domain.Turn{domain.UserText(string(summary))}, schema.Judge, repair.WithLogger(logger))
	var exhausted *repair.ExhaustedError
	if errors.As(err, &exhausted) {
		return JudgeResult{}, domain.NewToolError(domain.ErrSchemaRepairExhausted, "Judge JSON invalid after repair").
			WithDetails(exhausted.Errors).
			WithCause(err)
	}
	if err != nil {
		return JudgeResult{}, err
	}

	confidence, ok := payload.Value["confidence"].(float64)
	var confPtr *float64
	if ok {
		confPtr = &confidence
	}
	if err := p.analyses.AttachJudge(ctx, analysisID, payload.Value, confPtr); err != nil {
		return JudgeResult{}, fmt.Errorf("store judge: %w", err)
	}

	escalated := confidence < EscalationThreshold
	logger.Info("judge stored", "confidence", confidence, "escalated", escalated)
	return JudgeResult{AnalysisID: analysisID, Judge: payload.Value, Escalated: escalated}, nil
}
