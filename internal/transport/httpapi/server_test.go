package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/logging"
	"ContractsOrchestrator/internal/usecase"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeOrchestrator struct {
	resp usecase.Response
	err  error
	got  usecase.Request
}

func (f *fakeOrchestrator) Handle(_ context.Context, req usecase.Request) (usecase.Response, error) {
	f.got = req
	return f.resp, f.err
}

type fakeSync struct {
	res usecase.SyncResult
	err error
	got usecase.SyncRequest
}

func (f *fakeSync) Run(_ context.Context, req usecase.SyncRequest) (usecase.SyncResult, error) {
	f.got = req
	return f.res, f.err
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func newTestServer(o Orchestrator, sync CatalogSyncer) *Server {
	return NewServer(Deps{Orchestrator: o, Sync: sync, Logger: logging.Discard()})
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestServer(&fakeOrchestrator{}, nil), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, Version, body["version"])
}

func TestOrchestratePreflight(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{}, nil)
	for _, path := range []string{"/functions/v1/ai-orchestrator", "/orchestrate"} {
		rec, _ := do(t, s, http.MethodOptions, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "authorization, apikey, x-client-request-id, content-type, x-idempotency-key", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestOrchestrateMalformedBody(t *testing.T) {
	o := &fakeOrchestrator{}
	s := newTestServer(o, nil)

	rec, body := do(t, s, http.MethodPost, "/orchestrate", `{"msg":"hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Body must be { message: string }", body["error"])
	assert.Equal(t, map[string]any{"msg": "hi"}, body["received"])
	assert.Equal(t, Version, body["version"])

	rec, body = do(t, s, http.MethodPost, "/orchestrate", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{}, body["received"])

	rec, _ = do(t, s, http.MethodPost, "/orchestrate", `{"message":42}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, o.got.Message)
}

func TestOrchestratePlainText(t *testing.T) {
	o := &fakeOrchestrator{resp: usecase.Response{Text: "hello"}}
	rec, body := do(t, newTestServer(o, nil), http.MethodPost, "/functions/v1/ai-orchestrator",
		`{"message":"find me a paving contract"}`, map[string]string{"x-idempotency-key": "hdr-key"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", body["text"])
	assert.Equal(t, "hdr-key", body["idempotencyKey"])
	assert.NotContains(t, body, "toolCall")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, usecase.Request{Message: "find me a paving contract", IdempotencyKey: "hdr-key"}, o.got)
}

func TestOrchestrateBodyKeyWins(t *testing.T) {
	o := &fakeOrchestrator{resp: usecase.Response{Text: "ok"}}
	_, body := do(t, newTestServer(o, nil), http.MethodPost, "/orchestrate",
		`{"message":"hi","idempotencyKey":"body-key"}`, map[string]string{"x-idempotency-key": "hdr-key"})
	assert.Equal(t, "body-key", body["idempotencyKey"])
	assert.Equal(t, "body-key", o.got.IdempotencyKey)
}

func TestOrchestrateToolResult(t *testing.T) {
	o := &fakeOrchestrator{resp: usecase.Response{
		Text:       "found",
		ToolCall:   &domain.ToolCall{Name: "searchContracts", Args: json.RawMessage(`{"query":"paving"}`)},
		ToolResult: map[string]any{"count": 1},
	}}
	rec, body := do(t, newTestServer(o, nil), http.MethodPost, "/orchestrate", `{"message":"paving"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"name": "searchContracts", "args": map[string]any{"query": "paving"}}, body["toolCall"])
	assert.Equal(t, map[string]any{"count": float64(1)}, body["toolResult"])
	assert.NotContains(t, body, "idempotencyKey")
}

func TestOrchestrateToolFailure(t *testing.T) {
	failure := domain.NewToolError(domain.ErrSchemaRepairExhausted, "Judge JSON invalid after repair").
		WithDetails([]map[string]string{{"location": "/confidence", "message": "type"}})
	o := &fakeOrchestrator{err: &usecase.ToolFailedError{Call: domain.ToolCall{Name: "judgeBundle", Args: json.RawMessage(`{"analysisId":"a1"}`)}, Err: failure}}

	rec, body := do(t, newTestServer(o, nil), http.MethodPost, "/orchestrate", `{"message":"judge a1"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Judge JSON invalid after repair", body["error"])
	assert.Equal(t, "judgeBundle", body["toolCall"].(map[string]any)["name"])
	assert.NotNil(t, body["details"])
	assert.Equal(t, Version, body["version"])
}

func TestOrchestrateUnhandled(t *testing.T) {
	o := &fakeOrchestrator{err: fmt.Errorf("first turn: %w", fmt.Errorf("%w: status 529", domain.ErrModelBackend))}

	rec, body := do(t, newTestServer(o, nil), http.MethodPost, "/orchestrate", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "first turn: model backend error: status 529", body["error"])
	assert.Contains(t, body["stack"], "model backend error")
}

func TestErrorChain(t *testing.T) {
	inner := errors.New("root cause")
	err := fmt.Errorf("outer: %w", errors.Join(errors.New("side"), inner))
	assert.Equal(t, "outer: side\nroot cause\nside\nroot cause\n  side\n  root cause", errorChain(err))
}

func TestCatalogPreflight(t *testing.T) {
	rec, _ := do(t, newTestServer(&fakeOrchestrator{}, &fakeSync{}), http.MethodOptions, "/functions/v1/samgov-contracts", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCatalogSync(t *testing.T) {
	sync := &fakeSync{res: usecase.SyncResult{Total: 3, Items: []domain.Notice{{NoticeID: ptr("N1")}}}}
	rec, body := do(t, newTestServer(&fakeOrchestrator{}, sync), http.MethodPost, "/catalog/sync",
		`{"limit":5,"keywords":"paving","postedFrom":"2025-01-01"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["items"], 1)
	require.NotNil(t, sync.got.Limit)
	assert.Equal(t, 5, *sync.got.Limit)
	assert.Equal(t, "paving", sync.got.Keywords)
	assert.Equal(t, "2025-01-01", sync.got.PostedFrom)
}

func TestCatalogSyncEmptyBodyUsesDefaults(t *testing.T) {
	sync := &fakeSync{}
	rec, _ := do(t, newTestServer(&fakeOrchestrator{}, sync), http.MethodPost, "/catalog/sync", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.SyncRequest{}, sync.got)
}

func TestCatalogSyncErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		error  string
		detail string
	}{
		{"missing key", fmt.Errorf("%w: missing SAM_API_KEY", domain.ErrNotConfigured), 500, "Missing SAM_API_KEY.", ""},
		{"upstream", fmt.Errorf("search catalog: %w", &domain.UpstreamError{Service: "SAM.gov", Status: 429, Body: "throttled"}), 429, "SAM.gov error 429", "throttled"},
		{"db", fmt.Errorf("upsert contracts: %w", domain.ErrPersistence), 500, "DB upsert failed", "upsert contracts: persistence error"},
		{"bad date", domain.NewToolError(domain.ErrInvalidArguments, "postedFrom is not a date: %q", "x"), 422, `postedFrom is not a date: "x"`, ""},
		{"other", errors.New("boom"), 500, "Unhandled error", "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, newTestServer(&fakeOrchestrator{}, &fakeSync{err: tc.err}), http.MethodPost, "/functions/v1/samgov-contracts", `{}`, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.error, body["error"])
			if tc.detail != "" {
				assert.Equal(t, tc.detail, body["detail"])
			}
		})
	}
}

func TestCatalogSyncNotConfigured(t *testing.T) {
	rec, body := do(t, newTestServer(&fakeOrchestrator{}, nil), http.MethodPost, "/catalog/sync", `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Missing SAM_API_KEY.", body["error"])
}

func ptr[T any](v T) *T { return &v }
