package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

const (
	// UploadRoot is the document store folder holding per-notice uploads.
	UploadRoot = "contract_docs"

	uploadListLimit = 100
)

// UploadPrefix is the folder of user uploads for noticeID.
func UploadPrefix(noticeID string) string {
	return UploadRoot + "/" + noticeID + "/"
}

// DocumentLister merges catalog attachments with user uploads.
type DocumentLister struct {
	contracts ports.ContractStore
	documents ports.DocumentStore
	logger    *slog.Logger
}

// NewDocumentLister wires the contract table and the document store. A nil
// document store yields no uploads.
func NewDocumentLister(contracts ports.ContractStore, documents ports.DocumentStore, logger *slog.Logger) *DocumentLister {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentLister{contracts: contracts, documents: documents, logger: logger}
}

// ContractDocs is the merged document view of one notice.
type ContractDocs struct {
	NoticeID     string              `json:"noticeId"`
	Title        *string             `json:"title"`
	SamNoticeURL *string             `json:"samNoticeUrl"`
	Attachments  []domain.Attachment `json:"attachments"`
	Uploads      []domain.Upload     `json:"uploads"`
}

// List returns the notice's catalog links and its uploaded PDFs. A missing
// contract row yields nulls; a failing upload listing yields no uploads.
func (l *DocumentLister) List(ctx context.Context, noticeID string) (ContractDocs, error) {
	if strings.TrimSpace(noticeID) == "" {
		return ContractDocs{}, domain.NewToolError(domain.ErrMissingRequiredInput, "noticeId required")
	}

	out := ContractDocs{NoticeID: noticeID, Attachments: []domain.Attachment{}, Uploads: []domain.Upload{}}

	row, err := l.contracts.GetContract(ctx, noticeID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return ContractDocs{}, fmt.Errorf("load contract: %w", err)
	default:
		out.Title = row.Title
		out.SamNoticeURL = row.NoticeURL
		if row.Attachments != nil {
			out.Attachments = row.Attachments
		}
	}

	if l.documents == nil {
		return out, nil
	}
	prefix := UploadPrefix(noticeID)
	paths, err := l.documents.List(ctx, prefix, uploadListLimit)
	if err != nil {
		l.logger.Warn("list uploads", "notice_id", noticeID, "error", err)
		return out, nil
	}
	for _, p := range paths {
		name := path.Base(p)
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			continue
		}
		out.Uploads = append(out.Uploads, domain.Upload{Name: name, Path: prefix + name})
	}
	return out, nil
}
