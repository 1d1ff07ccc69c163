package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

func TestNormalize_SpreadsheetRow(t *testing.T) {
	raw := comprasetl.RawRecord{
		"UF":             "sp",
		"Órgão":          "Prefeitura",
		"Item":           "Caneta",
		"Quantidade":     "10",
		"Valor Unitário": "2.5",
	}

	got := Normalize(raw)

	assert.Equal(t, comprasetl.NormalizedRecord{
		"uf":             "sp",
		"orgao":          "Prefeitura",
		"item":           "Caneta",
		"quantidade":     10.0,
		"valor_unitario": 2.5,
		"valor_total":    25.0,
	}, got)
}

func TestNormalizeAll_PreservesOrder(t *testing.T) {
	raws := []comprasetl.RawRecord{
		{"Item": "a"},
		{"Item": "b"},
		{"Item": "c"},
	}

	got := NormalizeAll(raws)

	require.Len(t, got, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, got[i]["item"])
	}
}

func TestNormalize_OutputIsJSONSerializable(t *testing.T) {
	rec := Normalize(comprasetl.RawRecord{"Quantidade": "abc", "Valor Unitário": "Inf"})

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"quantidade":null,"valor_unitario":null,"valor_total":0}`, string(data))
}
