package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Órgão Responsável", "orgao_responsavel"},
		{"UF", "uf"},
		{"Valor Unitário", "valor_unitario"},
		{"Quantidade", "quantidade"},
		{"Descrição   do\tItem", "descricao_do_item"},
		{"CÓDIGO  ÇÃO", "codigo_cao"},
		{"already_normal", "already_normal"},
		{"", ""},
		{"a b", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	keys := []string{
		"Órgão Responsável",
		"  Leading And Trailing  ",
		"Ação\n\nPrioritária",
		"naïve café",
		"ÅNGSTRÖM",
		"x__y",
	}
	for _, k := range keys {
		once := NormalizeKey(k)
		assert.Equal(t, once, NormalizeKey(once), "key %q", k)
	}
}

func TestNormalizeKeys_CopiesValuesUnchanged(t *testing.T) {
	raw := comprasetl.RawRecord{
		"UF":               "sp",
		"Órgão":            "Prefeitura",
		"Quantidade":       "10",
		"Valor Unitário":   2.5,
		"Observação Extra": nil,
		"Aprovado":         true,
	}

	got := NormalizeKeys(raw)

	assert.Equal(t, comprasetl.NormalizedRecord{
		"uf":               "sp",
		"orgao":            "Prefeitura",
		"quantidade":       "10",
		"valor_unitario":   2.5,
		"observacao_extra": nil,
		"aprovado":         true,
	}, got)
	assert.Equal(t, "10", raw["Quantidade"], "input must not be mutated")
}

func TestNormalizeKeys_CollisionLastSortedLabelWins(t *testing.T) {
	raw := comprasetl.RawRecord{
		"Órgão": "first",
		"orgao": "second",
		"ORGAO": "third",
	}

	// sorted labels: "ORGAO", "orgao", "Órgão"
	assert.Equal(t, "first", NormalizeKeys(raw)["orgao"])
}
