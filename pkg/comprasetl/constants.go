package comprasetl

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Run completed (committed or nothing to load)
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to database
	ExitLoadFailed      = 13 // Schema or batch execution failed, transaction rolled back
	ExitSetupError      = 14 // Schema unreadable, input directory missing or empty
)

const (
	// DefaultBatchSize is the maximum number of rows per INSERT statement.
	DefaultBatchSize = 500

	// MaxBatchSize keeps a single statement under PostgreSQL's limit of
	// 65535 bind parameters (5 columns per row).
	MaxBatchSize = 65535 / ColumnCount

	// ColumnCount is the number of columns written per validated tuple.
	ColumnCount = 5

	// DefaultTable is the target table for procurement records.
	DefaultTable = "compras_publicas"

	// DefaultTimestampColumn is refreshed by the upsert policy on conflict.
	DefaultTimestampColumn = "data_insercao"

	// DefaultTimeout bounds a whole command run.
	DefaultTimeout = 10 * time.Minute

	// DefaultStatementTimeout bounds each individual store operation
	// (schema apply, BEGIN, each batch, COMMIT, ROLLBACK).
	DefaultStatementTimeout = 1 * time.Minute

	// DefaultRawDir holds spreadsheets and their extracted JSON.
	DefaultRawDir = "data/raw"

	// DefaultProcessedDir holds normalized datasets ready for loading.
	DefaultProcessedDir = "data/processed"

	// NormalizedSuffix is appended to the base name of transformed datasets.
	NormalizedSuffix = "_normalized"

	// MaxErrorPreviewLength is the maximum number of characters of a failed
	// statement shown in error messages.
	MaxErrorPreviewLength = 200

	// DefaultParallelism bounds concurrent file work in extract/transform/prepare.
	DefaultParallelism = 4
)

// Canonical field names of a normalized procurement record.
const (
	FieldUF            = "uf"
	FieldOrgao         = "orgao"
	FieldItem          = "item"
	FieldQuantidade    = "quantidade"
	FieldValorUnitario = "valor_unitario"
	FieldValorTotal    = "valor_total"
)

// RequiredFields lists the fields every loadable record must carry, in the
// column order used by INSERT statements.
var RequiredFields = []string{
	FieldUF,
	FieldOrgao,
	FieldItem,
	FieldQuantidade,
	FieldValorUnitario,
}
