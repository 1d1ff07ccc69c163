package report

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

func sampleSummary() *comprasetl.LoadSummary {
	s := comprasetl.NewLoadSummary(comprasetl.ConflictUpsert, 500)
	s.AddFile(comprasetl.FileSummary{
		Name: "compras_sp_normalized.json", RecordsRead: 3, RecordsValidated: 2,
		RecordsSkipped: 1, RecordsInserted: 2, Batches: 1, Status: comprasetl.StatusCommitted,
	})
	s.AddFile(comprasetl.FileSummary{
		Name: "compras_rj_normalized.json", RecordsRead: 1, RecordsValidated: 1,
		Batches: 1, Status: comprasetl.StatusRolledBack,
		Err:         errors.New("batch execution failed: duplicate key"),
		RollbackErr: errors.New("rollback failed: conn closed"),
	})
	s.Finish()
	s.Duration = 1500 * time.Millisecond
	return s
}

func TestRenderSummary_Plain(t *testing.T) {
	out := RenderSummary(sampleSummary(), false)

	assert.Contains(t, out, "Load summary")
	assert.Contains(t, out, "Conflict policy: upsert")
	assert.Contains(t, out, "Batch size:      500")
	assert.Contains(t, out, "2 processed, 1 failed")
	assert.Contains(t, out, "Records skipped: 1")
	assert.Contains(t, out, "Rows written:    2")
	assert.Contains(t, out, "Status:          rolled_back")
	assert.Contains(t, out, "Duration:        1.5s")
	assert.Contains(t, out, "✓ compras_sp_normalized.json  committed")
	assert.Contains(t, out, "✗ compras_rj_normalized.json  rolled_back")
	assert.Contains(t, out, "duplicate key")
	assert.Contains(t, out, "rollback failed: conn closed")
	assert.NotContains(t, out, "\x1b[", "plain output carries no escape codes")
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestRenderSummary_DryRun(t *testing.T) {
	s := comprasetl.NewLoadSummary(comprasetl.ConflictInsertOnly, 10)
	s.DryRun = true
	s.Finish()

	out := RenderSummary(s, false)

	assert.Contains(t, out, "dry run, nothing written")
	assert.Contains(t, out, "insert-only")
	assert.Contains(t, out, "noop")
}

func TestRenderSummary_TruncatesLongErrors(t *testing.T) {
	s := comprasetl.NewLoadSummary(comprasetl.ConflictUpsert, 1)
	s.AddFile(comprasetl.FileSummary{
		Name: "big.json", Status: comprasetl.StatusFailed,
		Err: errors.New(strings.Repeat("x", 1000)),
	})
	s.Finish()

	out := RenderSummary(s, false)

	assert.Contains(t, out, strings.Repeat("x", comprasetl.MaxErrorPreviewLength)+"...")
	assert.NotContains(t, out, strings.Repeat("x", comprasetl.MaxErrorPreviewLength+1))
}

func TestRenderSummary_TruncatesOnCharacterBoundary(t *testing.T) {
	s := comprasetl.NewLoadSummary(comprasetl.ConflictUpsert, 1)
	s.AddFile(comprasetl.FileSummary{
		Name: "licitação.json", Status: comprasetl.StatusFailed,
		Err: errors.New("a" + strings.Repeat("ç", 300)),
	})
	s.Finish()

	out := RenderSummary(s, false)

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "a"+strings.Repeat("ç", comprasetl.MaxErrorPreviewLength-1)+"...")
	assert.Contains(t, out, "licitação.json")
}

func TestRenderSummary_StyledKeepsContent(t *testing.T) {
	out := RenderSummary(sampleSummary(), true)

	assert.Contains(t, out, "compras_sp_normalized.json")
	assert.Contains(t, out, "╭", "styled output is boxed")
}

func TestRenderSummary_Nil(t *testing.T) {
	assert.Equal(t, "", RenderSummary(nil, true))
}
