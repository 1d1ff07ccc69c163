package transform

import "github.com/vvka-141/comprasetl/pkg/comprasetl"

// Normalize applies key normalization and field coercion to one raw record.
func Normalize(raw comprasetl.RawRecord) comprasetl.NormalizedRecord {
	return Coerce(NormalizeKeys(raw))
}

// NormalizeAll normalizes records preserving their order.
func NormalizeAll(raws []comprasetl.RawRecord) []comprasetl.NormalizedRecord {
	out := make([]comprasetl.NormalizedRecord, len(raws))
	for i, raw := range raws {
		out[i] = Normalize(raw)
	}
	return out
}
