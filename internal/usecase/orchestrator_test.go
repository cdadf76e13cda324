package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/logging"
	"ContractsOrchestrator/internal/ports"
)

type stubToolbox struct {
	results map[string]any
	errs    map[string]error
	calls   []domain.ToolCall
	tc      ports.ToolContext
}

func (s *stubToolbox) Declarations() []domain.ToolDeclaration {
	return []domain.ToolDeclaration{{Name: "searchContracts"}, {Name: "summarizeDocs"}}
}

func (s *stubToolbox) Has(name string) bool {
	return name == "searchContracts" || name == "summarizeDocs"
}

func (s *stubToolbox) Dispatch(_ context.Context, call domain.ToolCall, tc ports.ToolContext) (any, error) {
	s.calls = append(s.calls, call)
	s.tc = tc
	if err := s.errs[call.Name]; err != nil {
		return nil, err
	}
	return s.results[call.Name], nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memoryAudit) Record(e domain.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memoryAudit) last() domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func toolCall(name, args string) domain.Generation {
	return domain.Generation{ToolCall: &domain.ToolCall{ID: "call_1", Name: name, Args: json.RawMessage(args)}}
}

func TestHandlePlainTextAnswer(t *testing.T) {
	model := &scriptedModel{replies: []domain.Generation{text("Try searching for paving work in Utah.")}}
	audit := &memoryAudit{}
	tools := &stubToolbox{}
	o := NewOrchestrator(model, tools, audit, logging.Discard())

	resp, err := o.Handle(context.Background(), Request{Message: "find me a paving contract"})
	require.NoError(t, err)
	assert.Equal(t, "Try searching for paving work in Utah.", resp.Text)
	assert.Nil(t, resp.ToolCall)
	assert.Nil(t, resp.ToolResult)
	assert.Empty(t, tools.calls)

	require.Equal(t, 1, model.callCount())
	assert.Equal(t, AssistantInstruction, model.calls[0].Opts.SystemInstruction)
	assert.Len(t, model.calls[0].Opts.Tools, 2)

	entry := audit.last()
	assert.True(t, entry.OK)
	assert.Empty(t, entry.ToolCalled)
	assert.Equal(t, "find me a paving contract", entry.Message)
}

func TestHandleToolRound(t *testing.T) {
	model := &scriptedModel{replies: []domain.Generation{
		toolCall("searchContracts", `{"query":"paving"}`),
		text("Found one demo contract."),
	}}
	audit := &memoryAudit{}
	tools := &stubToolbox{results: map[string]any{"searchContracts": map[string]any{"count": 1}}}
	o := NewOrchestrator(model, tools, audit, logging.Discard())

	resp, err := o.Handle(context.Background(), Request{Message: "paving", IdempotencyKey: "idem-1"})
	require.NoError(t, err)
	assert.Equal(t, "Found one demo contract.", resp.Text)
	require.NotNil(t, resp.ToolCall)
	assert.Equal(t, "searchContracts", resp.ToolCall.Name)
	assert.Equal(t, map[string]any{"count": 1}, resp.ToolResult)
	assert.Equal(t, "idem-1", tools.tc.IdempotencyKey)
	assert.Same(t, model, tools.tc.Model)

	require.Equal(t, 2, model.callCount())
	history := model.calls[1].Turns
	require.Len(t, history, 3)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, domain.RoleModel, history[1].Role)
	assert.Equal(t, "searchContracts", history[1].Parts[0].ToolCall.Name)
	assert.Equal(t, domain.RoleTool, history[2].Role)
	result := history[2].Parts[0].ToolResult
	require.NotNil(t, result)
	assert.Equal(t, "call_1", result.CallID)
	assert.Equal(t, map[string]any{"count": 1}, result.Payload)

	entry := audit.last()
	assert.True(t, entry.OK)
	assert.Equal(t, "idem-1", entry.IdempotencyKey)
	assert.Equal(t, "searchContracts", entry.ToolCalled)
	assert.Equal(t, "Found one demo contract.", entry.ResponseText)
	assert.NotNil(t, entry.RawToolCall)
	assert.NotNil(t, entry.RawToolResult)
}

func TestHandleToolFailureSkipsSecondTurn(t *testing.T) {
	failure := domain.NewToolError(domain.ErrMissingRequiredInput, "noticeId and selected[] required").WithDetails([]string{"noticeId"})
	model := &scriptedModel{replies: []domain.Generation{toolCall("summarizeDocs", `{}`)}}
	audit := &memoryAudit{}
	o := NewOrchestrator(model, &stubToolbox{errs: map[string]error{"summarizeDocs": failure}}, audit, logging.Discard())

	_, err := o.Handle(context.Background(), Request{Message: "summarize"})
	require.Error(t, err)
	assert.Equal(t, 1, model.callCount())

	failed, ok := IsToolFailure(err)
	require.True(t, ok)
	assert.Equal(t, "summarizeDocs", failed.Call.Name)
	assert.Equal(t, http.StatusBadRequest, domain.StatusOf(err))
	assert.Equal(t, []string{"noticeId"}, domain.DetailsOf(err))

	entry := audit.last()
	assert.False(t, entry.OK)
	assert.Equal(t, "summarizeDocs", entry.ToolCalled)
	assert.NotEmpty(t, entry.ErrorText)
	assert.Equal(t, []string{"noticeId"}, entry.Details)
}

func TestHandleUnknownToolReturnsFirstText(t *testing.T) {
	gen := toolCall("deleteEverything", `{}`)
	gen.Text = "I can't do that."
	model := &scriptedModel{replies: []domain.Generation{gen}}
	tools := &stubToolbox{}
	o := NewOrchestrator(model, tools, &memoryAudit{}, logging.Discard())

	resp, err := o.Handle(context.Background(), Request{Message: "wipe it"})
	require.NoError(t, err)
	assert.Equal(t, "I can't do that.", resp.Text)
	assert.Nil(t, resp.ToolCall)
	assert.Empty(t, tools.calls)
	assert.Equal(t, 1, model.callCount())
}

func TestHandleModelFailureIsAudited(t *testing.T) {
	model := &scriptedModel{err: errors.New("overloaded")}
	audit := &memoryAudit{}
	o := NewOrchestrator(model, &stubToolbox{}, audit, logging.Discard())

	_, err := o.Handle(context.Background(), Request{Message: "hi", IdempotencyKey: "k"})
	require.Error(t, err)
	_, isTool := IsToolFailure(err)
	assert.False(t, isTool)

	entry := audit.last()
	assert.False(t, entry.OK)
	assert.Equal(t, "k", entry.IdempotencyKey)
	assert.Contains(t, entry.ErrorText, "overloaded")
}

func TestHandleEndToEndSummarize(t *testing.T) {
	store := newMemoryAnalyses()
	fetcher := &mapFetcher{bodies: map[string][]byte{"https://good.example/a.pdf": []byte("%PDF-1.7")}}
	pipeline := newPipeline(store, fetcher, nil, false)
	tools := &pipelineToolbox{pipeline: pipeline}

	model := &scriptedModel{respond: func(turns []domain.Turn, opts domain.GenerateOptions) (domain.Generation, error) {
		switch {
		case opts.SystemInstruction == AssistantInstruction && len(turns) == 1:
			return toolCall("summarizeDocs", `{"noticeId":"N1","selected":["https://good.example/a.pdf","https://bad.example/b.pdf"]}`), nil
		case opts.SystemInstruction == AssistantInstruction:
			return text("Summary stored."), nil
		default:
			return text(validSummary), nil
		}
	}}
	o := NewOrchestrator(model, tools, &memoryAudit{}, logging.Discard())

	resp, err := o.Handle(context.Background(), Request{Message: "summarize N1", IdempotencyKey: "e2e"})
	require.NoError(t, err)
	assert.Equal(t, "Summary stored.", resp.Text)

	res, ok := resp.ToolResult.(SummarizeResult)
	require.True(t, ok)
	assert.Equal(t, []string{"https://good.example/a.pdf"}, res.ReferencedFiles)

	rec := store.only()
	assert.Equal(t, domain.AnalysisSucceeded, rec.Status)
	assert.Equal(t, "e2e", rec.IdempotencyKey)
	assert.Equal(t, []string{"https://good.example/a.pdf"}, rec.Summary["referenced_files"])
	assert.Equal(t, 3, model.callCount())
}

// pipelineToolbox routes summarizeDocs straight to the pipeline.
type pipelineToolbox struct {
	pipeline *AnalysisPipeline
}

func (p *pipelineToolbox) Declarations() []domain.ToolDeclaration {
	return []domain.ToolDeclaration{{Name: "summarizeDocs"}}
}

func (p *pipelineToolbox) Has(name string) bool { return name == "summarizeDocs" }

func (p *pipelineToolbox) Dispatch(ctx context.Context, call domain.ToolCall, tc ports.ToolContext) (any, error) {
	var args struct {
		NoticeID string   `json:"noticeId"`
		Selected []string `json:"selected"`
	}
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return nil, err
	}
	return p.pipeline.Summarize(ctx, SummarizeInput{NoticeID: args.NoticeID, Selected: args.Selected}, tc)
}
