package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the loader explains to the user.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeUniqueViolation     = "23505"
	pgCodeNotNullViolation    = "23502"
	pgCodeCheckViolation      = "23514"
	pgCodeUndefinedTable      = "42P01"
	pgCodeUndefinedColumn     = "42703"
	pgCodeQueryCanceled       = "57014"
	pgCodeInvalidTextRepr     = "22P02"
	pgCodeNumericOutOfRange   = "22003"
	pgCodeTooManyConnections  = "53300"
	pgCodeConnectionException = "08"
	pgCodeDataException       = "22"
)

// Hint returns a short, user-facing explanation of a statement failure, or
// "" when nothing specific is known.
func Hint(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return hintForPgError(pgErr)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context deadline exceeded"):
		return "statement timed out; raise --statement-timeout or lower --batch-size"
	case strings.Contains(msg, "context canceled"):
		return "run was canceled"
	case strings.Contains(msg, "conn closed") || strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset"):
		return "connection to the database was lost"
	}
	return ""
}

func hintForPgError(pgErr *pgconn.PgError) string {
	code := pgErr.Code
	switch code {
	case pgCodeUniqueViolation:
		hint := "duplicate (uf, orgao, item) with --conflict-policy insert-only; use upsert to overwrite"
		if pgErr.Detail != "" {
			hint += " (" + pgErr.Detail + ")"
		}
		return hint
	case pgCodeNotNullViolation, pgCodeCheckViolation:
		return "row violates a table constraint: " + pgErr.ConstraintName
	case pgCodeUndefinedTable:
		return "target table does not exist; check --table and the schema file"
	case pgCodeUndefinedColumn:
		return "target table lacks an expected column; check the schema file"
	case pgCodeQueryCanceled:
		return "statement was canceled (statement_timeout or --statement-timeout); lower --batch-size or raise the timeout"
	case pgCodeInvalidTextRepr, pgCodeNumericOutOfRange:
		return "a value does not fit the column type"
	case pgCodeTooManyConnections:
		return "server has no free connections"
	}

	switch {
	case strings.HasPrefix(code, pgCodeConnectionException):
		return "connection to the database was lost"
	case strings.HasPrefix(code, pgCodeDataException):
		return "a value was rejected by the database"
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation
}
