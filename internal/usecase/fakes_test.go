package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ContractsOrchestrator/internal/domain"
)

// scriptedModel answers each Generate call with the next reply, or with
// respond when set.
type scriptedModel struct {
	mu      sync.Mutex
	replies []domain.Generation
	err     error
	respond func(turns []domain.Turn, opts domain.GenerateOptions) (domain.Generation, error)

	calls []modelCall
}

type modelCall struct {
	Turns []domain.Turn
	Opts  domain.GenerateOptions
}

func (m *scriptedModel) Generate(_ context.Context, turns []domain.Turn, opts domain.GenerateOptions) (domain.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, modelCall{Turns: append([]domain.Turn(nil), turns...), Opts: opts})
	if m.respond != nil {
		return m.respond(turns, opts)
	}
	if m.err != nil {
		return domain.Generation{}, m.err
	}
	if len(m.replies) == 0 {
		return domain.Generation{}, errors.New("no scripted reply left")
	}
	out := m.replies[0]
	m.replies = m.replies[1:]
	return out, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func text(s string) domain.Generation { return domain.Generation{Text: s} }

type memoryAnalyses struct {
	mu      sync.Mutex
	records map[string]*domain.Analysis
}

func newMemoryAnalyses() *memoryAnalyses {
	return &memoryAnalyses{records: map[string]*domain.Analysis{}}
}

func (m *memoryAnalyses) CreateAnalysis(_ context.Context, in domain.NewAnalysis) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.records[id] = &domain.Analysis{
		ID:             id,
		NoticeID:       in.NoticeID,
		DocRefs:        in.DocRefs,
		IdempotencyKey: in.IdempotencyKey,
		Status:         domain.AnalysisRunning,
		CreatedAt:      time.Now(),
	}
	return id, nil
}

func (m *memoryAnalyses) transition(id string, apply func(*domain.Analysis)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status != domain.AnalysisRunning {
		return domain.ErrInvalidTransition
	}
	apply(rec)
	return nil
}

func (m *memoryAnalyses) MarkSucceeded(_ context.Context, id string, summary map[string]any) error {
	return m.transition(id, func(a *domain.Analysis) {
		a.Status = domain.AnalysisSucceeded
		a.Summary = summary
	})
}

func (m *memoryAnalyses) MarkFailed(_ context.Context, id string, reason string) error {
	return m.transition(id, func(a *domain.Analysis) {
		a.Status = domain.AnalysisFailed
		a.Error = reason
	})
}

func (m *memoryAnalyses) AttachJudge(_ context.Context, id string, judge map[string]any, confidence *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.Summary == nil {
		return domain.ErrNotFound
	}
	rec.Judge = judge
	rec.Confidence = confidence
	return nil
}

func (m *memoryAnalyses) GetAnalysis(_ context.Context, id string) (*domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (m *memoryAnalyses) only() *domain.Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		cp := *rec
		return &cp
	}
	return nil
}

type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	seen   []string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, url)
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("GET %s: 404", url)
}

type fakeDocuments struct {
	paths   []string
	listErr error
	signed  []string
}

func (d *fakeDocuments) List(_ context.Context, prefix string, limit int) ([]string, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.paths, nil
}

func (d *fakeDocuments) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	d.signed = append(d.signed, path)
	return fmt.Sprintf("https://store.example/signed/%s?ttl=%d", path, int(ttl.Seconds())), nil
}

func (d *fakeDocuments) PublicURL(path string) string {
	return "https://store.example/public/" + path
}

type memoryContracts struct {
	rows      map[string]domain.Contract
	upserted  [][]domain.Contract
	upsertErr error
	getErr    error
}

func (m *memoryContracts) UpsertContracts(_ context.Context, rows []domain.Contract) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, rows)
	return nil
}

func (m *memoryContracts) GetContract(_ context.Context, noticeID string) (*domain.Contract, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.rows[noticeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

type fakeCatalog struct {
	page  domain.CatalogPage
	err   error
	query domain.CatalogQuery
}

func (c *fakeCatalog) Search(_ context.Context, q domain.CatalogQuery) (domain.CatalogPage, error) {
	c.query = q
	return c.page, c.err
}

func ptr[T any](v T) *T { return &v }
