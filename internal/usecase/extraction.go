package usecase

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
	"ContractsOrchestrator/internal/repair"
	"ContractsOrchestrator/internal/schema"
)

// MaxExtractionRunes bounds the solicitation text sent to the model.
const MaxExtractionRunes = 30000

var htmlTag = regexp.MustCompile(`(?i)<(html|body|div|p|table|tr|td|br|span|h[1-6]|li|ul|ol|section|article)[\s>/]`)

var whitespaceRun = regexp.MustCompile(`[ \t\r\f\v]+`)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Extractor turns raw solicitation text into the extraction schema.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor builds an extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractResult carries validated extraction data.
type ExtractResult struct {
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	Data           map[string]any `json:"data"`
}

// Extract validates the model output against the extraction schema with one
// repair round. wantSubPackages asks the model to fill tradePackages.
func (e *Extractor) Extract(ctx context.Context, text string, wantSubPackages bool, tc ports.ToolContext) (ExtractResult, error) {
	if strings.TrimSpace(text) == "" {
		return ExtractResult{}, domain.NewToolError(domain.ErrInvalidArguments, "extractSolicitation requires { text: string }")
	}

	generate, err := generator(tc.Model, extractionInstruction())
	if err != nil {
		return ExtractResult{}, err
	}

	input := Truncate(PlainText(text), MaxExtractionRunes)
	parts := []domain.Part{domain.TextPart(input)}
	if wantSubPackages {
		parts = append(parts, domain.TextPart("Also list the subcontractor trade packages this work implies in tradePackages."))
	}

	payload, err := repair.Attempt(ctx, generate, []domain.Turn{{Role: domain.RoleUser, Parts: parts}}, schema.Extraction, repair.WithLogger(e.logger))
	var exhausted *repair.ExhaustedError
	if errors.As(err, &exhausted) {
		e.logger.Warn("extraction invalid after repair", "errors", len(exhausted.Errors))
		return ExtractResult{}, domain.NewToolError(domain.ErrSchemaRepairExhausted, "extractSolicitation: JSON still invalid after repair").
			WithDetails(exhausted.Errors).
			WithCause(err)
	}
	if err != nil {
		return ExtractResult{}, err
	}
	return ExtractResult{IdempotencyKey: tc.IdempotencyKey, Data: payload.Value}, nil
}

// PlainText flattens HTML markup to readable text. Input that does not look
// like HTML is returned unchanged.
func PlainText(text string) string {
	if !htmlTag.MatchString(text) {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// Truncate keeps at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
