package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContractsOrchestrator/internal/config"
	"ContractsOrchestrator/internal/domain"
)

func newTestRepo(t *testing.T) (*SQLRepository, *sql.DB) {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:", Migrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, DriverSQLite), db
}

func strPtr(s string) *string { return &s }

func TestMigrate_Idempotent(t *testing.T) {
	_, db := newTestRepo(t)
	require.NoError(t, Migrate(context.Background(), db, DriverSQLite))

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}

func TestUpsertContracts_InsertThenUpdate(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	posted := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := domain.Contract{
		NoticeID:    "N1",
		Title:       strPtr("Runway paving"),
		Agency:      strPtr("DEPT OF THE AIR FORCE"),
		PostedAt:    &posted,
		NoticeURL:   strPtr("https://sam.gov/opp/N1/view"),
		Attachments: []domain.Attachment{{Name: "Attachment 1", URL: strPtr("https://sam.gov/a1")}},
		Raw:         json.RawMessage(`{"noticeId":"N1"}`),
	}
	require.NoError(t, repo.UpsertContracts(ctx, []domain.Contract{first, {NoticeID: ""}}))

	second := first
	second.Title = strPtr("Runway paving, phase 2")
	dup := first
	dup.Title = strPtr("stale")
	require.NoError(t, repo.UpsertContracts(ctx, []domain.Contract{dup, second}))

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samgov_contracts").Scan(&rows))
	assert.Equal(t, 1, rows)

	got, err := repo.GetContract(ctx, "N1")
	require.NoError(t, err)
	assert.Equal(t, "Runway paving, phase 2", *got.Title)
	require.NotNil(t, got.PostedAt)
	assert.True(t, posted.Equal(*got.PostedAt))
	assert.Nil(t, got.ResponseDueAt)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "Attachment 1", got.Attachments[0].Name)
	assert.JSONEq(t, `{"noticeId":"N1"}`, string(got.Raw))
}

func TestGetContract_Missing(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.GetContract(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAnalysis_Lifecycle(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateAnalysis(ctx, domain.NewAnalysis{NoticeID: "N1", DocRefs: []string{"a.pdf", "b.pdf"}, IdempotencyKey: "k-1"})
	require.NoError(t, err)

	a, err := repo.GetAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisRunning, a.Status)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, a.DocRefs)
	assert.Equal(t, "k-1", a.IdempotencyKey)
	assert.Nil(t, a.Summary)

	// judge cannot attach before a summary exists
	err = repo.AttachJudge(ctx, id, map[string]any{"confidence": 0.9}, nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, repo.MarkSucceeded(ctx, id, map[string]any{"overview": "o", "scope_summary": "s"}))
	err = repo.MarkFailed(ctx, id, "late failure")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	conf := 0.4
	require.NoError(t, repo.AttachJudge(ctx, id, map[string]any{"confidence": 0.4}, &conf))

	a, err = repo.GetAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisSucceeded, a.Status)
	assert.Equal(t, "o", a.Summary["overview"])
	assert.Equal(t, 0.4, a.Judge["confidence"])
	require.NotNil(t, a.Confidence)
	assert.Equal(t, 0.4, *a.Confidence)
	assert.Empty(t, a.Error)
}

func TestAnalysis_FailedIsTerminal(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreateAnalysis(ctx, domain.NewAnalysis{NoticeID: "N1"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, id, "no documents"))

	err = repo.MarkSucceeded(ctx, id, map[string]any{"overview": "o"})
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	a, err := repo.GetAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisFailed, a.Status)
	assert.Equal(t, "no documents", a.Error)
	assert.Equal(t, []string{}, a.DocRefs)
}

func TestGetAnalysis_Missing(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.GetAnalysis(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 404, domain.StatusOf(err))
}

func TestAppendAudit(t *testing.T) {
	repo, db := newTestRepo(t)
	err := repo.AppendAudit(context.Background(), domain.AuditEntry{
		IdempotencyKey: "k-2",
		Message:        "find me a paving contract",
		ToolCalled:     "searchContracts",
		OK:             true,
		ResponseText:   "Found one.",
		RawToolCall:    map[string]any{"name": "searchContracts"},
		RawToolResult:  map[string]any{"count": 1},
	})
	require.NoError(t, err)

	var (
		tool    string
		ok      bool
		rawCall string
		details sql.NullString
	)
	require.NoError(t, db.QueryRow("SELECT tool_called, ok, raw_tool_call, details FROM ai_logs WHERE idempotency_key = ?", "k-2").
		Scan(&tool, &ok, &rawCall, &details))
	assert.Equal(t, "searchContracts", tool)
	assert.True(t, ok)
	assert.JSONEq(t, `{"name":"searchContracts"}`, rawCall)
	assert.False(t, details.Valid)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}
