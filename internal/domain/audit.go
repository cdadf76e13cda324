package domain

import "time"

// AuditEntry is one append-only record of an orchestration round.
type AuditEntry struct {
	IdempotencyKey string
	Message        string
	ToolCalled     string
	OK             bool
	ResponseText   string
	ErrorText      string
	Details        any
	RawToolCall    any
	RawToolResult  any
	CreatedAt      time.Time
}
