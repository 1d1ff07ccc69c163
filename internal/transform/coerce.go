package transform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// ParseNumber converts a scalar into a float64. Anything that is not a finite
// number (empty or non-numeric text, bool, nil, infinities) yields NaN.
func ParseNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		return parseNumericString(string(n))
	case string:
		return parseNumericString(n)
	default:
		return math.NaN()
	}
	if math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func parseNumericString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// Coerce rewrites quantidade and valor_unitario as float64 (nil when not a
// number) and sets valor_total to their product, or 0 when either is missing
// or not a number. The record is modified in place and returned.
func Coerce(rec comprasetl.NormalizedRecord) comprasetl.NormalizedRecord {
	qty := coerceField(rec, comprasetl.FieldQuantidade)
	price := coerceField(rec, comprasetl.FieldValorUnitario)

	if math.IsNaN(qty) || math.IsNaN(price) {
		rec[comprasetl.FieldValorTotal] = float64(0)
	} else {
		rec[comprasetl.FieldValorTotal] = qty * price
	}
	return rec
}

func coerceField(rec comprasetl.NormalizedRecord, field string) float64 {
	v, ok := rec[field]
	if !ok {
		return math.NaN()
	}
	f := ParseNumber(v)
	if math.IsNaN(f) {
		rec[field] = nil
	} else {
		rec[field] = f
	}
	return f
}
