package domain

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Part is one segment of a turn. Exactly one of the fields is set.
type Part struct {
	Text       string
	Inline     *InlineData
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// InlineData is a binary attachment sent to the model as-is.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolResult carries a handler outcome back to the model.
type ToolResult struct {
	CallID  string `json:"callId,omitempty"`
	Name    string `json:"name"`
	Payload any    `json:"response"`
	IsError bool   `json:"isError,omitempty"`
}

// Turn is one entry of the causal history sent to the model each round.
type Turn struct {
	Role  Role
	Parts []Part
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// InlinePart builds a binary attachment part.
func InlinePart(mimeType string, data []byte) Part {
	return Part{Inline: &InlineData{MIMEType: mimeType, Data: data}}
}

// UserText is a single-part user turn.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// ToolDeclaration describes a tool to the model. Properties is a JSON-encodable
// property map; Required lists the mandatory property names.
type ToolDeclaration struct {
	Name        string
	Description string
	Properties  any
	Required    []string
}

// GenerateOptions configures one model round.
type GenerateOptions struct {
	Tools             []ToolDeclaration
	SystemInstruction string
	MaxTokens         int
}

// Generation is the outcome of one model round: free text and, optionally,
// the first tool invocation the model requested.
type Generation struct {
	Text     string
	ToolCall *ToolCall
}
