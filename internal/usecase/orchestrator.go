package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

// Toolbox is the set of tools the model may call during orchestration.
type Toolbox interface {
	Declarations() []domain.ToolDeclaration
	Has(name string) bool
	Dispatch(ctx context.Context, call domain.ToolCall, tc ports.ToolContext) (any, error)
}

// AuditSink receives one entry per terminal orchestration outcome. Record
// must not block the request.
type AuditSink interface {
	Record(entry domain.AuditEntry)
}

// Request is one user message with its optional idempotency key.
type Request struct {
	Message        string
	IdempotencyKey string
}

// Response is the outcome of a successful orchestration round. ToolCall and
// ToolResult are set only when a tool ran.
type Response struct {
	Text       string
	ToolCall   *domain.ToolCall
	ToolResult any
}

// ToolFailedError is returned when the requested tool failed. The second
// model turn is skipped.
type ToolFailedError struct {
	Call domain.ToolCall
	Err  error
}

func (e *ToolFailedError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Call.Name, e.Err)
}

func (e *ToolFailedError) Unwrap() error {
	return e.Err
}

// Orchestrator runs the two-turn tool-calling loop for one message.
type Orchestrator struct {
	model  ports.ModelGateway
	tools  Toolbox
	audit  AuditSink
	logger *slog.Logger
}

// NewOrchestrator wires the gateway, the toolbox and the audit sink. A nil
// sink disables auditing.
func NewOrchestrator(model ports.ModelGateway, tools Toolbox, audit AuditSink, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{model: model, tools: tools, audit: audit, logger: logger}
}

// Handle asks the model once with every tool declared. When it requests a
// registered tool, the tool runs and the model is asked a second time with
// the tool result; otherwise the first answer is returned as-is.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	entry := domain.AuditEntry{IdempotencyKey: req.IdempotencyKey, Message: req.Message}

	resp, err := o.handle(ctx, req, &entry)
	if err != nil {
		entry.OK = false
		entry.ErrorText = err.Error()
		entry.Details = domain.DetailsOf(err)
	} else {
		entry.OK = true
		entry.ResponseText = resp.Text
	}
	o.record(entry)
	return resp, err
}

func (o *Orchestrator) handle(ctx context.Context, req Request, entry *domain.AuditEntry) (Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, domain.NewToolError(domain.ErrMissingRequiredInput, "message required")
	}
	if o.model == nil {
		return Response{}, fmt.Errorf("%w: model gateway", domain.ErrNotConfigured)
	}

	user := domain.UserText(req.Message)
	opts := domain.GenerateOptions{SystemInstruction: AssistantInstruction}
	if o.tools != nil {
		opts.Tools = o.tools.Declarations()
	}

	first, err := o.model.Generate(ctx, []domain.Turn{user}, opts)
	if err != nil {
		return Response{}, fmt.Errorf("first turn: %w", err)
	}

	call := first.ToolCall
	if call == nil {
		return Response{Text: first.Text}, nil
	}
	if o.tools == nil || !o.tools.Has(call.Name) {
		o.logger.Warn("model requested unknown tool", "tool", call.Name)
		return Response{Text: first.Text}, nil
	}

	entry.ToolCalled = call.Name
	entry.RawToolCall = call
	logger := o.logger.With("tool", call.Name, "idempotency_key", req.IdempotencyKey)

	result, err := o.tools.Dispatch(ctx, *call, ports.ToolContext{IdempotencyKey: req.IdempotencyKey, Model: o.model})
	if err != nil {
		logger.Warn("tool failed", "status", domain.StatusOf(err), "error", err)
		return Response{}, &ToolFailedError{Call: *call, Err: err}
	}
	entry.RawToolResult = result

	history := []domain.Turn{
		user,
		{Role: domain.RoleModel, Parts: []domain.Part{{ToolCall: call}}},
		{Role: domain.RoleTool, Parts: []domain.Part{{ToolResult: &domain.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Payload: result,
		}}}},
	}
	// tool blocks in the history require the declarations to be resent
	second, err := o.model.Generate(ctx, history, opts)
	if err != nil {
		return Response{}, fmt.Errorf("second turn: %w", err)
	}
	logger.Info("tool round complete")

	return Response{Text: second.Text, ToolCall: call, ToolResult: result}, nil
}

func (o *Orchestrator) record(entry domain.AuditEntry) {
	if o.audit == nil {
		return
	}
	o.audit.Record(entry)
}

// IsToolFailure reports whether err came from a tool handler rather than
// from the orchestration itself.
func IsToolFailure(err error) (*ToolFailedError, bool) {
	var failed *ToolFailedError
	if errors.As(err, &failed) {
		return failed, true
	}
	return nil, false
}
