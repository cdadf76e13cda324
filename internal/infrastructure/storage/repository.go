package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

const (
	contractsTable = "samgov_contracts"
	analysesTable  = "analyses"
	auditTable     = "ai_logs"
)

// SQLRepository persists contracts, analyses and audit rows in Postgres or SQLite.
type SQLRepository struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var (
	_ ports.ContractStore = (*SQLRepository)(nil)
	_ ports.AnalysisStore = (*SQLRepository)(nil)
	_ ports.AuditStore    = (*SQLRepository)(nil)
)

// NewSQLRepository wires a sql.DB opened with the given driver name.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{
		db:  db,
		sb:  builderFor(driver),
		now: func() time.Time { return time.Now().UTC() },
	}
}

var contractColumns = []string{
	"notice_id", "title", "agency", "naics", "set_aside", "notice_type", "solicitation_number",
	"place_city", "place_state", "place_country", "posted_at", "response_due_at",
	"sam_ui_link", "attachments", "raw", "updated_at",
}

const contractConflict = `ON CONFLICT (notice_id) DO UPDATE SET
	title = EXCLUDED.title,
	agency = EXCLUDED.agency,
	naics = EXCLUDED.naics,
	set_aside = EXCLUDED.set_aside,
	notice_type = EXCLUDED.notice_type,
	solicitation_number = EXCLUDED.solicitation_number,
	place_city = EXCLUDED.place_city,
	place_state = EXCLUDED.place_state,
	place_country = EXCLUDED.place_country,
	posted_at = EXCLUDED.posted_at,
	response_due_at = EXCLUDED.response_due_at,
	sam_ui_link = EXCLUDED.sam_ui_link,
	attachments = EXCLUDED.attachments,
	raw = EXCLUDED.raw,
	updated_at = EXCLUDED.updated_at`

// UpsertContracts inserts or replaces rows keyed by notice id in a single
// statement. A notice id repeated within the batch keeps its last occurrence.
func (r *SQLRepository) UpsertContracts(ctx context.Context, contracts []domain.Contract) error {
	if r.db == nil || len(contracts) == 0 {
		return nil
	}

	last := make(map[string]int, len(contracts))
	for i, c := range contracts {
		if c.NoticeID != "" {
			last[c.NoticeID] = i
		}
	}
	if len(last) == 0 {
		return nil
	}

	now := r.now()
	insert := r.sb.Insert(contractsTable).Columns(contractColumns...)
	for i, c := range contracts {
		if c.NoticeID == "" || last[c.NoticeID] != i {
			continue
		}
		attachments, err := marshalText(nonNilAttachments(c.Attachments))
		if err != nil {
			return fmt.Errorf("marshal attachments %s: %w", c.NoticeID, err)
		}
		var raw any
		if len(c.Raw) > 0 {
			raw = string(c.Raw)
		}
		insert = insert.Values(
			c.NoticeID, c.Title, c.Agency, c.NAICS, c.SetAside, c.NoticeType, c.SolicitationNumber,
			c.PlaceCity, c.PlaceState, c.PlaceCountry, nullableTime(c.PostedAt), nullableTime(c.ResponseDueAt),
			c.NoticeURL, attachments, raw, now,
		)
	}

	query, args, err := insert.Suffix(contractConflict).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return persistErr("upsert contracts", err)
	}
	return nil
}

// GetContract loads one row; a missing row yields domain.ErrNotFound.
func (r *SQLRepository) GetContract(ctx context.Context, noticeID string) (*domain.Contract, error) {
	query, args, err := r.sb.Select(contractColumns...).From(contractsTable).
		Where(sq.Eq{"notice_id": noticeID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select contract: %w", err)
	}

	var (
		c                                                     domain.Contract
		title, agency, naics, setAside, noticeType, solNumber sql.NullString
		city, state, country, samURL, attachments, raw        sql.NullString
		postedAt, responseDue                                 sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.NoticeID, &title, &agency, &naics, &setAside, &noticeType, &solNumber,
		&city, &state, &country, &postedAt, &responseDue,
		&samURL, &attachments, &raw, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contract %s: %w", noticeID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("select contract", err)
	}

	c.Title = stringPtr(title)
	c.Agency = stringPtr(agency)
	c.NAICS = stringPtr(naics)
	c.SetAside = stringPtr(setAside)
	c.NoticeType = stringPtr(noticeType)
	c.SolicitationNumber = stringPtr(solNumber)
	c.PlaceCity = stringPtr(city)
	c.PlaceState = stringPtr(state)
	c.PlaceCountry = stringPtr(country)
	c.PostedAt = timePtr(postedAt)
	c.ResponseDueAt = timePtr(responseDue)
	c.NoticeURL = stringPtr(samURL)
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &c.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments %s: %w", noticeID, err)
		}
	}
	if raw.Valid {
		c.Raw = json.RawMessage(raw.String)
	}
	return &c, nil
}

// CreateAnalysis inserts a running record and returns its id.
func (r *SQLRepository) CreateAnalysis(ctx context.Context, in domain.NewAnalysis) (string, error) {
	docIDs, err := marshalText(nonNilStrings(in.DocRefs))
	if err != nil {
		return "", fmt.Errorf("marshal doc ids: %w", err)
	}

	id := uuid.NewString()
	now := r.now()
	query, args, err := r.sb.Insert(analysesTable).
		Columns("id", "notice_id", "doc_ids", "idempotency_key", "status", "created_at", "updated_at").
		Values(id, in.NoticeID, docIDs, nullableString(in.IdempotencyKey), string(domain.AnalysisRunning), now, now).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert analysis: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", persistErr("insert analysis", err)
	}
	return id, nil
}

// MarkSucceeded moves a running record to succeeded with its summary.
func (r *SQLRepository) MarkSucceeded(ctx context.Context, id string, summary map[string]any) error {
	body, err := marshalText(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return r.transition(ctx, id, map[string]any{"status": string(domain.AnalysisSucceeded), "summary": body})
}

// MarkFailed moves a running record to failed with the failure reason.
func (r *SQLRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.transition(ctx, id, map[string]any{"status": string(domain.AnalysisFailed), "error": reason})
}

// transition applies set only while the record is still running.
func (r *SQLRepository) transition(ctx context.Context, id string, set map[string]any) error {
	set["updated_at"] = r.now()
	query, args, err := r.sb.Update(analysesTable).SetMap(set).
		Where(sq.Eq{"id": id, "status": string(domain.AnalysisRunning)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build transition: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistErr("update analysis", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("rows affected", err)
	}
	if n != 1 {
		return fmt.Errorf("analysis %s is not running: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

// AttachJudge stores judge output on a record that already has a summary.
func (r *SQLRepository) AttachJudge(ctx context.Context, id string, judge map[string]any, confidence *float64) error {
	body, err := marshalText(judge)
	if err != nil {
		return fmt.Errorf("marshal judge: %w", err)
	}
	var conf any
	if confidence != nil {
		conf = *confidence
	}

	query, args, err := r.sb.Update(analysesTable).
		Set("judge", body).
		Set("confidence", conf).
		Set("updated_at", r.now()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"summary": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build attach judge: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistErr("attach judge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("rows affected", err)
	}
	if n != 1 {
		return fmt.Errorf("analysis %s with summary: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetAnalysis loads one record; a missing record yields domain.ErrNotFound.
func (r *SQLRepository) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	query, args, err := r.sb.Select(
		"id", "notice_id", "doc_ids", "idempotency_key", "status",
		"summary", "judge", "confidence", "error", "created_at",
	).From(analysesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select analysis: %w", err)
	}

	var (
		a                                domain.Analysis
		status                           string
		docIDs                           string
		idemKey, summary, judge, failure sql.NullString
		confidence                       sql.NullFloat64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.NoticeID, &docIDs, &idemKey, &status,
		&summary, &judge, &confidence, &failure, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("select analysis", err)
	}

	a.Status = domain.AnalysisStatus(status)
	a.IdempotencyKey = idemKey.String
	a.Error = failure.String
	if confidence.Valid {
		v := confidence.Float64
		a.Confidence = &v
	}
	if err := json.Unmarshal([]byte(docIDs), &a.DocRefs); err != nil {
		return nil, fmt.Errorf("decode doc ids: %w", err)
	}
	if a.Summary, err = decodeObject(summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if a.Judge, err = decodeObject(judge); err != nil {
		return nil, fmt.Errorf("decode judge: %w", err)
	}
	return &a, nil
}

// AppendAudit inserts one ai_logs row.
func (r *SQLRepository) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	details, err := marshalOptional(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	rawCall, err := marshalOptional(entry.RawToolCall)
	if err != nil {
		return fmt.Errorf("marshal tool call: %w", err)
	}
	rawResult, err := marshalOptional(entry.RawToolResult)
	if err != nil {
		return fmt.Errorf("marshal tool result: %w", err)
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = r.now()
	}

	query, args, err := r.sb.Insert(auditTable).
		Columns("id", "idempotency_key", "message", "tool_called", "ok",
			"response_text", "error_text", "details", "raw_tool_call", "raw_tool_result", "created_at").
		Values(uuid.NewString(), nullableString(entry.IdempotencyKey), entry.Message, nullableString(entry.ToolCalled), entry.OK,
			nullableString(entry.ResponseText), nullableString(entry.ErrorText), details, rawCall, rawResult, created.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return persistErr("insert audit", err)
	}
	return nil
}

// persistErr marks err as a persistence failure and names the Postgres
// condition when the driver reports one.
func persistErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w: %s: %s (%s): %w", domain.ErrPersistence, op, pqErr.Code.Name(), pqErr.Code, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

func marshalText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalOptional(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return marshalText(v)
}

func decodeObject(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilAttachments(v []domain.Attachment) []domain.Attachment {
	if v == nil {
		return []domain.Attachment{}
	}
	return v
}
