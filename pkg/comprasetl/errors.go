package comprasetl

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	summary, err := loader.Load(ctx, cfg, files)
//	if errors.Is(err, comprasetl.ErrConnectionFailed) {
//	    // nothing was opened, nothing to roll back
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSetup indicates a fatal setup problem detected before any
	// transaction: unreadable schema file, missing input directory.
	ErrSetup = errors.New("setup failed")

	// ErrNoInput indicates the input directory holds no files to process.
	ErrNoInput = errors.New("no input files")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrSchemaFailed indicates the schema definition could not be applied.
	ErrSchemaFailed = errors.New("schema apply failed")

	// ErrBatchFailed indicates an INSERT batch failed inside a transaction.
	ErrBatchFailed = errors.New("batch execution failed")

	// ErrCommitFailed indicates COMMIT itself failed.
	ErrCommitFailed = errors.New("commit failed")

	// ErrRollbackFailed indicates ROLLBACK failed after another error.
	// It is recorded next to the original error, never instead of it.
	ErrRollbackFailed = errors.New("rollback failed")

	// ErrLoadFailed indicates at least one file transaction did not commit.
	ErrLoadFailed = errors.New("load failed")
)

// usagePatterns match the messages cobra produces for command-line misuse.
var usagePatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"required flag",
	"invalid argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrSetup), errors.Is(err, ErrNoInput):
		return ExitSetupError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrSchemaFailed),
		errors.Is(err, ErrLoadFailed),
		errors.Is(err, ErrBatchFailed),
		errors.Is(err, ErrCommitFailed):
		return ExitLoadFailed
	}

	errStr := err.Error()
	for _, pattern := range usagePatterns {
		if strings.Contains(errStr, pattern) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
