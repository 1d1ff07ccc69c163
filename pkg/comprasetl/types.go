package comprasetl

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RawRecord is one spreadsheet row as produced by the extractor: original
// column label to untyped scalar (string, float64, bool or nil).
type RawRecord map[string]any

// NormalizedRecord is a record whose keys are canonical snake-case ASCII.
// After coercion, quantidade and valor_unitario hold float64 (or nil when the
// source value is not a number) and valor_total is always a float64.
type NormalizedRecord map[string]any

// ValidatedTuple is a record that passed every validation rule, ready to be
// written as one row of (uf, orgao, item, quantidade, valor_unitario).
type ValidatedTuple struct {
	UF            string
	Orgao         string
	Item          string
	Quantidade    float64
	ValorUnitario float64
}

// Values returns the tuple's column values in RequiredFields order.
func (t ValidatedTuple) Values() []any {
	return []any{t.UF, t.Orgao, t.Item, t.Quantidade, t.ValorUnitario}
}

// ConflictPolicy selects how INSERT statements treat rows whose natural key
// (uf, orgao, item) already exists.
type ConflictPolicy string

const (
	// ConflictInsertOnly fails the statement on a natural-key duplicate.
	ConflictInsertOnly ConflictPolicy = "insert-only"

	// ConflictUpsert overwrites quantidade, valor_unitario and the load
	// timestamp of the existing row.
	ConflictUpsert ConflictPolicy = "upsert"
)

// ParseConflictPolicy converts user input into a ConflictPolicy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert-only", "insert_only", "insert":
		return ConflictInsertOnly, nil
	case "upsert":
		return ConflictUpsert, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (valid: insert-only, upsert): %w", s, ErrInvalidConfig)
	}
}

// IsValid reports whether p is one of the defined policies.
func (p ConflictPolicy) IsValid() bool {
	return p == ConflictInsertOnly || p == ConflictUpsert
}

func (p ConflictPolicy) String() string {
	return string(p)
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod converts a flag or config value into an AuthMethod.
// The empty string selects standard password authentication.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam", "awsiam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam", "gcp":
		return AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("unknown auth method %q: %w", s, ErrInvalidConfig)
	}
}

// ConnectionConfig represents resolved connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Cloud IAM parameters, used only by the matching AuthMethod.
	AWSRegion         string
	GoogleInstance    string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// LoadConfig contains all parameters needed for a load run.
type LoadConfig struct {
	// Connection is the target store endpoint.
	Connection ConnectionConfig

	// SchemaSQL is applied once per run before any data manipulation.
	// It must be idempotent (CREATE TABLE IF NOT EXISTS ...).
	SchemaSQL string

	// Table receives the rows; may be schema-qualified ("public.compras").
	Table string

	// TimestampColumn is set to now() by the upsert policy on conflict.
	TimestampColumn string

	// BatchSize is the maximum number of rows per INSERT statement.
	BatchSize int

	// ConflictPolicy selects the INSERT statement shape.
	ConflictPolicy ConflictPolicy

	// StatementTimeout bounds each store operation; expiry fails the
	// current transaction. Zero disables the per-operation bound.
	StatementTimeout time.Duration

	// Parallelism bounds concurrent dataset reads during preparation.
	Parallelism int

	// DryRun validates and plans without connecting to the store.
	DryRun bool
}

// ApplyDefaults fills zero-valued fields with package defaults.
func (c *LoadConfig) ApplyDefaults() {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.TimestampColumn == "" {
		c.TimestampColumn = DefaultTimestampColumn
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ConflictPolicy == "" {
		c.ConflictPolicy = ConflictUpsert
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		errs = append(errs, fmt.Errorf("batch size must be between 1 and %d, got %d: %w", MaxBatchSize, c.BatchSize, ErrInvalidConfig))
	}

	if !c.ConflictPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("conflict policy %q is not one of insert-only, upsert: %w", c.ConflictPolicy, ErrInvalidConfig))
	}

	if strings.TrimSpace(c.Table) == "" {
		errs = append(errs, fmt.Errorf("table is required: %w", ErrInvalidConfig))
	}

	if c.ConflictPolicy == ConflictUpsert && strings.TrimSpace(c.TimestampColumn) == "" {
		errs = append(errs, fmt.Errorf("timestamp column is required for upsert: %w", ErrInvalidConfig))
	}

	if !c.DryRun && strings.TrimSpace(c.SchemaSQL) == "" {
		errs = append(errs, fmt.Errorf("schema SQL is required: %w", ErrInvalidConfig))
	}

	if c.StatementTimeout < 0 {
		errs = append(errs, fmt.Errorf("statement timeout cannot be negative: %w", ErrInvalidConfig))
	}

	if !c.Connection.AuthMethod.IsValid() {
		errs = append(errs, fmt.Errorf("auth method %v is not supported: %w", c.Connection.AuthMethod, ErrInvalidConfig))
	}

	return errors.Join(errs...)
}
