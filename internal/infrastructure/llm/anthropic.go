package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

const defaultMaxTokens = 4096

// AnthropicGateway implements ports.ModelGateway on the Messages API.
type AnthropicGateway struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int
}

var _ ports.ModelGateway = (*AnthropicGateway)(nil)

// NewAnthropicGateway builds a gateway from configuration. SDK retries are
// disabled; extra request options (HTTP client, base URL) are appended last.
func NewAnthropicGateway(cfg config.ModelConfig, opts ...option.RequestOption) (*AnthropicGateway, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("anthropic gateway misconfigured")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.Endpoint))
	}
	reqOpts = append(reqOpts, opts...)

	return &AnthropicGateway{
		client:    anthropic.NewClient(reqOpts...),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate sends one Messages request and returns the text and first tool_use block.
func (g *AnthropicGateway) Generate(ctx context.Context, turns []domain.Turn, opts domain.GenerateOptions) (domain.Generation, error) {
	messages, err := anthropicMessages(turns)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("%w: %w", domain.ErrModelBackend, err)
	}

	params := anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: int64(pickMaxTokens(opts.MaxTokens, g.maxTokens)),
		Messages:  messages,
	}
	if sys := strings.TrimSpace(opts.SystemInstruction); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	if len(opts.Tools) > 0 {
		params.Tools = anthropicTools(opts.Tools)
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("%w: anthropic messages: %w", domain.ErrModelBackend, err)
	}

	var (
		out  domain.Generation
		text strings.Builder
	)
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			if out.ToolCall != nil {
				continue
			}
			args := json.RawMessage(v.JSON.Input.Raw())
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			out.ToolCall = &domain.ToolCall{ID: v.ID, Name: v.Name, Args: args}
		}
	}
	out.Text = text.String()
	return out, nil
}

func anthropicTools(decls []domain.ToolDeclaration) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(decls))
	for _, d := range decls {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: d.Properties,
				Required:   d.Required,
			},
		}})
	}
	return out
}

// anthropicMessages maps domain turns onto user/assistant messages. Tool
// results travel in user messages, as the API requires.
func anthropicMessages(turns []domain.Turn) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for i, turn := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Parts))
		for _, part := range turn.Parts {
			block, ok, err := anthropicBlock(part)
			if err != nil {
				return nil, fmt.Errorf("turn %d: %w", i, err)
			}
			if ok {
				blocks = append(blocks, block)
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch turn.Role {
		case domain.RoleModel:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

func anthropicBlock(part domain.Part) (anthropic.ContentBlockParamUnion, bool, error) {
	switch {
	case part.ToolCall != nil:
		args := part.ToolCall.Args
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		return anthropic.NewToolUseBlock(callID(part.ToolCall.ID, part.ToolCall.Name), args, part.ToolCall.Name), true, nil
	case part.ToolResult != nil:
		payload, err := json.Marshal(part.ToolResult.Payload)
		if err != nil {
			return anthropic.ContentBlockParamUnion{}, false, fmt.Errorf("marshal tool result: %w", err)
		}
		return anthropic.NewToolResultBlock(callID(part.ToolResult.CallID, part.ToolResult.Name), string(payload), part.ToolResult.IsError), true, nil
	case part.Inline != nil:
		if part.Inline.MIMEType != "application/pdf" {
			return anthropic.ContentBlockParamUnion{}, false, fmt.Errorf("unsupported inline type %q", part.Inline.MIMEType)
		}
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: base64.StdEncoding.EncodeToString(part.Inline.Data),
		}), true, nil
	case part.Text != "":
		return anthropic.NewTextBlock(part.Text), true, nil
	default:
		return anthropic.ContentBlockParamUnion{}, false, nil
	}
}

// callID pairs tool calls and results for backends that require ids even
// when the caller did not supply one.
func callID(id, name string) string {
	if id != "" {
		return id
	}
	return "call_" + name
}

func pickMaxTokens(requested, configured int) int {
	switch {
	case requested > 0:
		return requested
	case configured > 0:
		return configured
	default:
		return defaultMaxTokens
	}
}
