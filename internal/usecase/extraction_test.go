package usecase

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/logging"
	"ContractsOrchestrator/internal/ports"
)

func TestExtractValidOutput(t *testing.T) {
	model := &scriptedModel{replies: []domain.Generation{
		text("```json\n{\"solicitationNumber\":\"W912-25-R-0001\",\"title\":\"Runway repair\"}\n```"),
	}}
	e := NewExtractor(logging.Discard())

	res, err := e.Extract(context.Background(), "Solicitation W912-25-R-0001 Runway repair", false, ports.ToolContext{IdempotencyKey: "k", Model: model})
	require.NoError(t, err)
	assert.Equal(t, "k", res.IdempotencyKey)
	assert.Equal(t, "Runway repair", res.Data["title"])

	require.Equal(t, 1, model.callCount())
	assert.Len(t, model.calls[0].Turns[0].Parts, 1)
	assert.Contains(t, model.calls[0].Opts.SystemInstruction, "YYYY-MM-DD")
}

func TestExtractWantSubPackagesAddsInstruction(t *testing.T) {
	model := &scriptedModel{replies: []domain.Generation{text(`{"solicitationNumber":"1","title":"t","tradePackages":[{"trade":"electrical"}]}`)}}
	e := NewExtractor(logging.Discard())

	_, err := e.Extract(context.Background(), "text", true, ports.ToolContext{Model: model})
	require.NoError(t, err)
	parts := model.calls[0].Turns[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[1].Text, "tradePackages")
}

func TestExtractEmptyText(t *testing.T) {
	e := NewExtractor(logging.Discard())

	_, err := e.Extract(context.Background(), "  ", false, ports.ToolContext{Model: &scriptedModel{}})
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)
	assert.Equal(t, http.StatusUnprocessableEntity, domain.StatusOf(err))
	assert.EqualError(t, err, "extractSolicitation requires { text: string }")
}

func TestExtractInvalidAfterRepair(t *testing.T) {
	model := &scriptedModel{replies: []domain.Generation{text(`{"title":"t"}`), text(`{"title":"t","bogus":true}`)}}
	e := NewExtractor(logging.Discard())

	_, err := e.Extract(context.Background(), "text", false, ports.ToolContext{Model: model})
	assert.ErrorIs(t, err, domain.ErrSchemaRepairExhausted)
	assert.Equal(t, http.StatusUnprocessableEntity, domain.StatusOf(err))
	assert.EqualError(t, err, "extractSolicitation: JSON still invalid after repair")
	assert.NotEmpty(t, domain.DetailsOf(err))
	assert.Equal(t, 2, model.callCount())
}

func TestExtractWithoutModel(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), "text", false, ports.ToolContext{})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestPlainText(t *testing.T) {
	html := `<html><head><style>p{}</style></head><body><h1>Runway   Repair</h1><p>Due <b>June 1</b></p><script>x()</script><ul><li>Paving</li><li>Striping</li></ul></body></html>`

	out := PlainText(html)
	assert.Equal(t, "Runway Repair\nDue June 1\nPaving\nStriping", out)
	assert.NotContains(t, out, "x()")

	assert.Equal(t, "plain 1 < 2 text", PlainText("plain 1 < 2 text"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))

	long := strings.Repeat("ü", MaxExtractionRunes+10)
	assert.Equal(t, MaxExtractionRunes, utf8.RuneCountInString(Truncate(long, MaxExtractionRunes)))
}
