package domain

import "time"

// AnalysisStatus is the lifecycle state of an analysis record.
type AnalysisStatus string

const (
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisSucceeded AnalysisStatus = "succeeded"
	AnalysisFailed    AnalysisStatus = "failed"
)

// Analysis tracks one summarize -> judge run. It is created running and moves
// forward exactly once to succeeded or failed; judge output is attached later.
type Analysis struct {
	ID             string
	NoticeID       string
	DocRefs        []string
	IdempotencyKey string
	Status         AnalysisStatus
	Summary        map[string]any
	Judge          map[string]any
	Confidence     *float64
	Error          string
	CreatedAt      time.Time
}

// NewAnalysis is the input for creating a running record.
type NewAnalysis struct {
	NoticeID       string
	DocRefs        []string
	IdempotencyKey string
}
