// Package transform turns raw spreadsheet rows into normalized procurement
// records.
//
// Normalization has two steps. Keys are canonicalized (lowercase, diacritics
// stripped, whitespace runs collapsed to "_"), then the numeric fields
// quantidade and valor_unitario are coerced and valor_total is derived.
// Both steps are pure and never fail: values that do not parse as numbers
// are carried as nil and valor_total falls back to 0.
package transform
