// Package validate accepts or rejects normalized procurement records and
// projects accepted ones onto the five loadable columns.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vvka-141/comprasetl/internal/transform"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// Reasons reported in a Rejection.
const (
	ReasonMissing          = "missing or empty"
	ReasonNonPositive      = "must be a number greater than 0"
	ReasonNegativeOrNotNum = "must be a number greater than or equal to 0"
)

// Rejection describes why a record was dropped. Index is the record's
// position in the input sequence.
type Rejection struct {
	Index  int
	Field  string
	Value  any
	Reason string
}

func (r Rejection) String() string {
	return fmt.Sprintf("record %d: %s %s (got %q)", r.Index, r.Field, r.Reason, FormatValue(r.Value))
}

// Result holds the accepted tuples in input order and one Rejection per
// dropped record.
type Result struct {
	Tuples   []comprasetl.ValidatedTuple
	Rejected []Rejection
}

// Skipped returns the number of rejected records.
func (r Result) Skipped() int {
	return len(r.Rejected)
}

// Validate runs ValidateRecord over every record. It never fails.
func Validate(records []comprasetl.NormalizedRecord) Result {
	res := Result{Tuples: make([]comprasetl.ValidatedTuple, 0, len(records))}
	for i, rec := range records {
		tuple, rej := ValidateRecord(rec)
		if rej != nil {
			rej.Index = i
			res.Rejected = append(res.Rejected, *rej)
			continue
		}
		res.Tuples = append(res.Tuples, tuple)
	}
	return res
}

// ValidateRecord checks the required fields, then quantidade > 0, then
// valor_unitario >= 0, stopping at the first failure. The returned
// Rejection has Index 0; Validate fills in the position.
func ValidateRecord(rec comprasetl.NormalizedRecord) (comprasetl.ValidatedTuple, *Rejection) {
	for _, field := range comprasetl.RequiredFields {
		v, ok := rec[field]
		if !ok || strings.TrimSpace(FormatValue(v)) == "" {
			return comprasetl.ValidatedTuple{}, &Rejection{Field: field, Value: v, Reason: ReasonMissing}
		}
	}

	qty := transform.ParseNumber(rec[comprasetl.FieldQuantidade])
	if math.IsNaN(qty) || qty <= 0 {
		return comprasetl.ValidatedTuple{}, &Rejection{
			Field:  comprasetl.FieldQuantidade,
			Value:  rec[comprasetl.FieldQuantidade],
			Reason: ReasonNonPositive,
		}
	}

	price := transform.ParseNumber(rec[comprasetl.FieldValorUnitario])
	if math.IsNaN(price) || price < 0 {
		return comprasetl.ValidatedTuple{}, &Rejection{
			Field:  comprasetl.FieldValorUnitario,
			Value:  rec[comprasetl.FieldValorUnitario],
			Reason: ReasonNegativeOrNotNum,
		}
	}

	return comprasetl.ValidatedTuple{
		UF:            strings.ToUpper(strings.TrimSpace(FormatValue(rec[comprasetl.FieldUF]))),
		Orgao:         strings.TrimSpace(FormatValue(rec[comprasetl.FieldOrgao])),
		Item:          strings.TrimSpace(FormatValue(rec[comprasetl.FieldItem])),
		Quantidade:    qty,
		ValorUnitario: price,
	}, nil
}

// FormatValue renders a scalar the way it appears in the dataset: nil is
// empty, whole floats have no fractional part.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}
