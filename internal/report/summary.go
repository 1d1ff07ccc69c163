// Package report renders load and stage results for humans.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

type painter struct {
	styled bool
}

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p painter) status(s comprasetl.LoadStatus) string {
	switch s {
	case comprasetl.StatusCommitted:
		return p.paint(SuccessStyle, string(s))
	case comprasetl.StatusNoop:
		return p.paint(MutedStyle, string(s))
	case comprasetl.StatusRolledBack:
		return p.paint(WarningStyle, string(s))
	default:
		return p.paint(ErrorStyle, string(s))
	}
}

func (p painter) symbol(s comprasetl.LoadStatus) string {
	switch s {
	case comprasetl.StatusCommitted:
		return p.paint(SuccessStyle, SymbolCheck)
	case comprasetl.StatusNoop:
		return p.paint(MutedStyle, SymbolBullet)
	default:
		return p.paint(ErrorStyle, SymbolCross)
	}
}

// RenderSummary formats a load summary. With styled set the output carries
// terminal colors and a border; otherwise it is plain text suitable for logs.
func RenderSummary(s *comprasetl.LoadSummary, styled bool) string {
	if s == nil {
		return ""
	}
	p := painter{styled: styled}

	var b strings.Builder
	title := "Load summary"
	if s.DryRun {
		title += " (dry run, nothing written)"
	}
	b.WriteString(p.paint(TitleStyle, title))
	b.WriteByte('\n')

	row := func(label, value string) {
		b.WriteString(p.paint(LabelStyle, fmt.Sprintf("  %-17s", label+":")))
		b.WriteString(value)
		b.WriteByte('\n')
	}
	row("Run", s.RunID.String())
	row("Conflict policy", s.ConflictPolicy.String())
	row("Batch size", fmt.Sprintf("%d", s.BatchSize))
	row("Files", fmt.Sprintf("%d processed, %d failed", s.FilesProcessed, s.FilesFailed))
	row("Records read", fmt.Sprintf("%d", s.RecordsRead))
	row("Records valid", fmt.Sprintf("%d", s.RecordsValidated))
	row("Records skipped", fmt.Sprintf("%d", s.RecordsSkipped))
	row("Rows written", fmt.Sprintf("%d", s.RecordsInserted))
	row("Status", p.status(s.Status))
	row("Duration", s.Duration.Round(time.Millisecond).String())

	if len(s.Files) > 0 {
		b.WriteByte('\n')
	}
	for _, f := range s.Files {
		fmt.Fprintf(&b, "  %s %s  %s  %d read, %d skipped, %d written in %d batch(es)\n",
			p.symbol(f.Status), f.Name, p.status(f.Status),
			f.RecordsRead, f.RecordsSkipped, f.RecordsInserted, f.Batches)
		if f.Err != nil {
			b.WriteString("      ")
			b.WriteString(p.paint(ErrorStyle, preview(f.Err.Error())))
			b.WriteByte('\n')
		}
		if f.RollbackErr != nil {
			b.WriteString("      ")
			b.WriteString(p.paint(WarningStyle, preview(f.RollbackErr.Error())))
			b.WriteByte('\n')
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if styled {
		return BoxStyle.Render(out)
	}
	return out
}

func preview(msg string) string {
	return comprasetl.Preview(msg, comprasetl.MaxErrorPreviewLength)
}
