package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

// ChatCompletionsGateway implements ports.ModelGateway backed by OpenAI-compatible APIs.
type ChatCompletionsGateway struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

var _ ports.ModelGateway = (*ChatCompletionsGateway)(nil)

// NewChatCompletionsGateway builds a gateway from configuration. A nil client
// gets a default one honoring cfg.TimeoutSeconds.
func NewChatCompletionsGateway(cfg config.ModelConfig, client *http.Client) (*ChatCompletionsGateway, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" || cfg.Model == "" {
		return nil, fmt.Errorf("chat completions gateway misconfigured")
	}
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ChatCompletionsGateway{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxTokens:  cfg.MaxTokens,
		httpClient: client,
	}, nil
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []chatTool    `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string        `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate posts one chat completion request.
func (g *ChatCompletionsGateway) Generate(ctx context.Context, turns []domain.Turn, opts domain.GenerateOptions) (domain.Generation, error) {
	reqBody := chatRequest{
		Model:     g.model,
		Messages:  chatMessages(opts.SystemInstruction, turns),
		MaxTokens: pickMaxTokens(opts.MaxTokens, g.maxTokens),
	}
	for _, d := range opts.Tools {
		required := d.Required
		if required == nil {
			required = []string{}
		}
		reqBody.Tools = append(reqBody.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": d.Properties,
					"required":   required,
				},
			},
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("%w: marshal chat payload: %w", domain.ErrModelBackend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Generation{}, fmt.Errorf("%w: new request: %w", domain.ErrModelBackend, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("%w: send chat request: %w", domain.ErrModelBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Generation{}, fmt.Errorf("%w: chat completions %s: %s", domain.ErrModelBackend, resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Generation{}, fmt.Errorf("%w: decode chat response: %w", domain.ErrModelBackend, err)
	}
	if len(decoded.Choices) == 0 {
		return domain.Generation{}, fmt.Errorf("%w: chat response has no choices", domain.ErrModelBackend)
	}

	msg := decoded.Choices[0].Message
	var out domain.Generation
	if msg.Content != nil {
		out.Text = *msg.Content
	}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		args := json.RawMessage(tc.Function.Arguments)
		if len(bytes.TrimSpace(args)) == 0 {
			args = json.RawMessage(`{}`)
		}
		out.ToolCall = &domain.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args}
	}
	return out, nil
}

func chatMessages(system string, turns []domain.Turn) []chatMessage {
	var out []chatMessage
	if s := strings.TrimSpace(system); s != "" {
		out = append(out, chatMessage{Role: "system", Content: s})
	}

	for _, turn := range turns {
		switch turn.Role {
		case domain.RoleModel:
			msg := chatMessage{Role: "assistant"}
			var text strings.Builder
			for _, part := range turn.Parts {
				if part.ToolCall != nil {
					tc := chatToolCall{ID: callID(part.ToolCall.ID, part.ToolCall.Name), Type: "function"}
					tc.Function.Name = part.ToolCall.Name
					tc.Function.Arguments = string(part.ToolCall.Args)
					msg.ToolCalls = append(msg.ToolCalls, tc)
					continue
				}
				text.WriteString(part.Text)
			}
			if text.Len() > 0 {
				msg.Content = text.String()
			}
			out = append(out, msg)
		default:
			var content []map[string]any
			for i, part := range turn.Parts {
				switch {
				case part.ToolResult != nil:
					payload, _ := json.Marshal(part.ToolResult.Payload)
					out = append(out, chatMessage{
						Role:       "tool",
						ToolCallID: callID(part.ToolResult.CallID, part.ToolResult.Name),
						Content:    string(payload),
					})
				case part.Inline != nil:
					content = append(content, map[string]any{
						"type": "file",
						"file": map[string]string{
							"filename":  fmt.Sprintf("document-%d.pdf", i+1),
							"file_data": "data:" + part.Inline.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.Inline.Data),
						},
					})
				case part.Text != "":
					content = append(content, map[string]any{"type": "text", "text": part.Text})
				}
			}
			if len(content) > 0 {
				out = append(out, chatMessage{Role: "user", Content: content})
			}
		}
	}
	return out
}
