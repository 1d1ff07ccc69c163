// Package batch partitions validated tuples into bounded groups and renders
// one parameterized multi-row INSERT per group.
package batch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// Statement is a rendered INSERT ready to execute. len(Args) == Rows*ColumnCount
// and placeholder $k binds Args[k-1].
type Statement struct {
	SQL  string
	Args []any
	Rows int
}

// PlanOptions control statement rendering.
type PlanOptions struct {
	Table           string
	TimestampColumn string
	BatchSize       int
	Policy          comprasetl.ConflictPolicy
}

// Partition splits tuples into contiguous batches of at most size elements,
// preserving order. The last batch may be smaller. size must be positive.
func Partition(tuples []comprasetl.ValidatedTuple, size int) [][]comprasetl.ValidatedTuple {
	if size <= 0 {
		panic(fmt.Sprintf("batch: invalid batch size %d", size))
	}
	batches := make([][]comprasetl.ValidatedTuple, 0, (len(tuples)+size-1)/size)
	for start := 0; start < len(tuples); start += size {
		end := min(start+size, len(tuples))
		batches = append(batches, tuples[start:end])
	}
	return batches
}

// Render builds the INSERT statement for one batch under the given policy.
// table may be schema-qualified ("schema.table").
func Render(table, tsColumn string, rows []comprasetl.ValidatedTuple, policy comprasetl.ConflictPolicy) Statement {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteTable(table))
	b.WriteString(" (uf, orgao, item, quantidade, valor_unitario) VALUES ")

	args := make([]any, 0, len(rows)*comprasetl.ColumnCount)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < comprasetl.ColumnCount; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(i*comprasetl.ColumnCount + c + 1))
		}
		b.WriteByte(')')
		args = append(args, row.Values()...)
	}

	if policy == comprasetl.ConflictUpsert {
		b.WriteString(" ON CONFLICT (uf, orgao, item) DO UPDATE SET ")
		b.WriteString("quantidade = EXCLUDED.quantidade, valor_unitario = EXCLUDED.valor_unitario, ")
		b.WriteString(pgx.Identifier{tsColumn}.Sanitize())
		b.WriteString(" = now()")
	}

	return Statement{SQL: b.String(), Args: args, Rows: len(rows)}
}

// Plan partitions tuples and renders one statement per batch. An empty input
// yields no statements.
func Plan(opts PlanOptions, tuples []comprasetl.ValidatedTuple) ([]Statement, error) {
	if opts.BatchSize < 1 || opts.BatchSize > comprasetl.MaxBatchSize {
		return nil, fmt.Errorf("batch size must be between 1 and %d, got %d: %w",
			comprasetl.MaxBatchSize, opts.BatchSize, comprasetl.ErrInvalidConfig)
	}
	if !opts.Policy.IsValid() {
		return nil, fmt.Errorf("unknown conflict policy %q: %w", opts.Policy, comprasetl.ErrInvalidConfig)
	}
	if strings.TrimSpace(opts.Table) == "" {
		return nil, fmt.Errorf("table is required: %w", comprasetl.ErrInvalidConfig)
	}
	if opts.Policy == comprasetl.ConflictUpsert && strings.TrimSpace(opts.TimestampColumn) == "" {
		return nil, fmt.Errorf("timestamp column is required for upsert: %w", comprasetl.ErrInvalidConfig)
	}

	batches := Partition(tuples, opts.BatchSize)
	stmts := make([]Statement, len(batches))
	for i, rows := range batches {
		stmts[i] = Render(opts.Table, opts.TimestampColumn, rows, opts.Policy)
	}
	return stmts, nil
}

// QuoteTable sanitizes a possibly schema-qualified table name.
func QuoteTable(table string) string {
	return pgx.Identifier(strings.Split(strings.TrimSpace(table), ".")).Sanitize()
}
