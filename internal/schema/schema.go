// Package schema provides the schema-definition statement applied once at
// the start of every load.
package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/comprasetl/internal/batch"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

const defaultTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
    id              BIGSERIAL PRIMARY KEY,
    uf              TEXT           NOT NULL,
    orgao           TEXT           NOT NULL,
    item            TEXT           NOT NULL,
    quantidade      NUMERIC(18, 4) NOT NULL CHECK (quantidade > 0),
    valor_unitario  NUMERIC(18, 4) NOT NULL CHECK (valor_unitario >= 0),
    valor_total     NUMERIC(22, 4) GENERATED ALWAYS AS (quantidade * valor_unitario) STORED,
    %[2]s TIMESTAMPTZ    NOT NULL DEFAULT now(),
    CONSTRAINT %[3]s UNIQUE (uf, orgao, item)
);
`

// Default renders the built-in schema for table, with tsColumn as the load
// timestamp. It is idempotent.
func Default(table, tsColumn string) string {
	name := table
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	constraint := pgx.Identifier{name + "_natural_key"}.Sanitize()
	return fmt.Sprintf(defaultTemplate, batch.QuoteTable(table), pgx.Identifier{tsColumn}.Sanitize(), constraint)
}

// ReadFile loads a schema-definition file. An unreadable or empty file is a
// setup error.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("schema file %s: %w: %w", path, comprasetl.ErrSetup, err)
	}
	sql := strings.TrimSpace(string(data))
	if sql == "" {
		return "", fmt.Errorf("schema file %s is empty: %w", path, comprasetl.ErrSetup)
	}
	return sql, nil
}

// Resolve returns the contents of path, or the default schema when path is empty.
func Resolve(path, table, tsColumn string) (string, error) {
	if path == "" {
		return Default(table, tsColumn), nil
	}
	return ReadFile(path)
}
