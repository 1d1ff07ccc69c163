package transform

import (
	"sort"
	"strings"
	"unicode"

	"github.com/vvka-141/comprasetl/pkg/comprasetl"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey canonicalizes a column label: lowercase, decompose accented
// characters, drop combining marks, collapse each whitespace run into "_".
// NormalizeKey(NormalizeKey(k)) == NormalizeKey(k).
func NormalizeKey(key string) string {
	lowered := strings.ToLower(key)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, lowered)
	if err != nil {
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	inSpace := false
	for _, r := range stripped {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeKeys returns a new record with every key normalized and values
// copied unchanged. When two labels normalize to the same key, the label that
// sorts last wins.
func NormalizeKeys(raw comprasetl.RawRecord) comprasetl.NormalizedRecord {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(comprasetl.NormalizedRecord, len(raw))
	for _, k := range keys {
		out[NormalizeKey(k)] = raw[k]
	}
	return out
}
