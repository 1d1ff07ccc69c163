package batch

import (
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

func tuples(n int) []comprasetl.ValidatedTuple {
	out := make([]comprasetl.ValidatedTuple, n)
	for i := range out {
		out[i] = comprasetl.ValidatedTuple{
			UF:            "SP",
			Orgao:         "Prefeitura",
			Item:          fmt.Sprintf("item-%d", i),
			Quantidade:    float64(i + 1),
			ValorUnitario: 1.5,
		}
	}
	return out
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 500, []int{}},
		{1, 500, []int{1}},
		{500, 500, []int{500}},
		{501, 500, []int{500, 1}},
		{1200, 500, []int{500, 500, 200}},
		{7, 3, []int{3, 3, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_by_%d", tt.n, tt.size), func(t *testing.T) {
			in := tuples(tt.n)
			got := Partition(in, tt.size)

			sizes := make([]int, len(got))
			var flat []comprasetl.ValidatedTuple
			for i, b := range got {
				sizes[i] = len(b)
				assert.LessOrEqual(t, len(b), tt.size)
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.want, sizes)
			if tt.n > 0 {
				assert.Equal(t, in, flat, "concatenation must equal the input")
			}
		})
	}
}

func TestPartition_InvalidSizePanics(t *testing.T) {
	assert.Panics(t, func() { Partition(tuples(3), 0) })
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

func TestRender_PlaceholdersMatchArgs(t *testing.T) {
	for _, n := range []int{1, 2, 37} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			rows := tuples(n)
			stmt := Render("compras_publicas", "data_insercao", rows, comprasetl.ConflictInsertOnly)

			matches := placeholderRe.FindAllStringSubmatch(stmt.SQL, -1)
			require.Len(t, matches, 5*n)
			require.Len(t, stmt.Args, 5*n)
			assert.Equal(t, n, stmt.Rows)

			for i, m := range matches {
				idx, err := strconv.Atoi(m[1])
				require.NoError(t, err)
				assert.Equal(t, i+1, idx, "placeholders must be sequential")
			}

			// row-major: $k binds column (k-1)%5 of row (k-1)/5
			for k := 1; k <= 5*n; k++ {
				row := rows[(k-1)/5].Values()
				assert.Equal(t, row[(k-1)%5], stmt.Args[k-1])
			}
		})
	}
}

func TestRender_InsertOnly(t *testing.T) {
	stmt := Render("compras_publicas", "data_insercao", tuples(2), comprasetl.ConflictInsertOnly)

	assert.Equal(t,
		`INSERT INTO "compras_publicas" (uf, orgao, item, quantidade, valor_unitario) VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)`,
		stmt.SQL)
	assert.NotContains(t, stmt.SQL, "ON CONFLICT")
}

func TestRender_Upsert(t *testing.T) {
	stmt := Render("public.compras_publicas", "data_insercao", tuples(1), comprasetl.ConflictUpsert)

	assert.Equal(t,
		`INSERT INTO "public"."compras_publicas" (uf, orgao, item, quantidade, valor_unitario) VALUES ($1, $2, $3, $4, $5)`+
			` ON CONFLICT (uf, orgao, item) DO UPDATE SET quantidade = EXCLUDED.quantidade, valor_unitario = EXCLUDED.valor_unitario, "data_insercao" = now()`,
		stmt.SQL)
}

func TestQuoteTable_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `"bad""name"`, QuoteTable(`bad"name`))
	assert.Equal(t, `"etl"."compras"`, QuoteTable(" etl.compras "))
}

func TestPlan(t *testing.T) {
	opts := PlanOptions{
		Table:           comprasetl.DefaultTable,
		TimestampColumn: comprasetl.DefaultTimestampColumn,
		BatchSize:       500,
		Policy:          comprasetl.ConflictUpsert,
	}

	stmts, err := Plan(opts, tuples(1001))
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Equal(t, 500, stmts[0].Rows)
	assert.Equal(t, 500, stmts[1].Rows)
	assert.Equal(t, 1, stmts[2].Rows)
	assert.Equal(t, "item-1000", stmts[2].Args[2])

	stmts, err = Plan(opts, nil)
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestPlan_InvalidOptions(t *testing.T) {
	base := PlanOptions{Table: "t", TimestampColumn: "ts", BatchSize: 10, Policy: comprasetl.ConflictUpsert}

	tests := []struct {
		name   string
		mutate func(*PlanOptions)
	}{
		{"zero batch", func(o *PlanOptions) { o.BatchSize = 0 }},
		{"too many bind parameters", func(o *PlanOptions) { o.BatchSize = comprasetl.MaxBatchSize + 1 }},
		{"unknown policy", func(o *PlanOptions) { o.Policy = "ignore" }},
		{"empty table", func(o *PlanOptions) { o.Table = "" }},
		{"upsert without timestamp", func(o *PlanOptions) { o.TimestampColumn = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			_, err := Plan(opts, tuples(1))
			assert.ErrorIs(t, err, comprasetl.ErrInvalidConfig)
		})
	}
}

func TestMaxBatchSizeFitsBindLimit(t *testing.T) {
	stmt := Render("t", "ts", tuples(comprasetl.MaxBatchSize), comprasetl.ConflictInsertOnly)
	assert.LessOrEqual(t, len(stmt.Args), 65535)
}
