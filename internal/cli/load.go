package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/comprasetl/internal/config"
	"github.com/vvka-141/comprasetl/internal/dataset"
	"github.com/vvka-141/comprasetl/internal/db"
	"github.com/vvka-141/comprasetl/internal/files"
	"github.com/vvka-141/comprasetl/internal/logging"
	"github.com/vvka-141/comprasetl/internal/report"
	"github.com/vvka-141/comprasetl/internal/schema"
	"github.com/vvka-141/comprasetl/internal/services"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Validate normalized datasets and insert them into PostgreSQL",
	Long: `Load reads every .json dataset in the input directory, validates each record,
and inserts the accepted ones in batches of parameterized multi-row INSERTs.

The load command:
1. Reads and validates all datasets; rejected records are reported and skipped
2. Connects to PostgreSQL (one connection for the whole run)
3. Applies the schema (CREATE TABLE IF NOT EXISTS ...)
4. Writes each file inside its own transaction: a failing batch rolls back
   that file only, later files are still loaded
5. Prints a summary; the exit code is non-zero if any file was not committed

Conflict policy (natural key uf, orgao, item):
  upsert       existing rows get the new quantidade and valor_unitario (default)
  insert-only  a duplicate fails the batch and rolls the file back

Password Authentication:
  Password is NOT accepted as a CLI flag. Use DB_PASSWORD (e.g. in .env),
  $PGPASSWORD, or a connection string.

Examples:
  # Load data/processed into the database described by .env
  comprasetl load

  # Check what would be written without connecting
  comprasetl load --dry-run -v

  # Strict duplicates, smaller batches
  comprasetl load --conflict-policy insert-only --batch-size 100 -d compras`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

// loadFlagValues holds the flags shared by load and run.
type loadFlagValues struct {
	conn             connectionFlags
	schema           string
	table            string
	timestampColumn  string
	batchSize        int
	conflictPolicy   string
	timeout          time.Duration
	statementTimeout time.Duration
	dryRun           bool
}

var (
	loadFlags    loadFlagValues
	loadInputDir string
)

func init() {
	rootCmd.AddCommand(loadCmd)
	registerLoadFlags(loadCmd, &loadFlags)
	loadCmd.Flags().StringVar(&loadInputDir, "input-dir", comprasetl.DefaultProcessedDir,
		"Directory with the datasets to load (or $"+envProcessedDir+")")
}

func registerLoadFlags(cmd *cobra.Command, f *loadFlagValues) {
	registerConnectionFlags(cmd, &f.conn)

	cmd.Flags().StringVar(&f.schema, "schema", "",
		"SQL file applied before loading (default: built-in compras_publicas schema)")
	cmd.Flags().StringVar(&f.table, "table", comprasetl.DefaultTable,
		"Target table, optionally schema-qualified")
	cmd.Flags().StringVar(&f.timestampColumn, "timestamp-column", comprasetl.DefaultTimestampColumn,
		"Column set to now() when upsert overwrites a row")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", comprasetl.DefaultBatchSize,
		fmt.Sprintf("Rows per INSERT statement (1-%d)", comprasetl.MaxBatchSize))
	cmd.Flags().StringVar(&f.conflictPolicy, "conflict-policy", string(comprasetl.ConflictUpsert),
		"Duplicate natural key handling: upsert|insert-only")
	cmd.Flags().DurationVar(&f.timeout, "timeout", comprasetl.DefaultTimeout,
		"Maximum duration of the whole command")
	cmd.Flags().DurationVar(&f.statementTimeout, "statement-timeout", comprasetl.DefaultStatementTimeout,
		"Maximum duration of each database operation (0 disables)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false,
		"Validate and plan batches without connecting to the database")
}

// buildLoadConfig resolves every load setting with precedence
// flags > environment > comprasetl.yaml > defaults. It returns the load
// configuration and the overall command timeout.
func buildLoadConfig(cmd *cobra.Command, f *loadFlagValues, projectCfg *config.ProjectConfig) (comprasetl.LoadConfig, time.Duration, error) {
	var lc config.LoadConfig
	if projectCfg != nil {
		lc = projectCfg.Load
	}

	var errs []error
	table := setting{cmd, "table", envTable}.stringValue(f.table, lc.Table, comprasetl.DefaultTable)
	tsColumn := setting{cmd, "timestamp-column", envTimestampColumn}.stringValue(f.timestampColumn, lc.TimestampColumn, comprasetl.DefaultTimestampColumn)

	batchSize, err := setting{cmd, "batch-size", envBatchSize}.intValue(f.batchSize, lc.BatchSize, comprasetl.DefaultBatchSize)
	errs = append(errs, err)

	policy, err := comprasetl.ParseConflictPolicy(
		setting{cmd, "conflict-policy", envConflictPolicy}.stringValue(f.conflictPolicy, lc.ConflictPolicy, string(comprasetl.ConflictUpsert)))
	errs = append(errs, err)

	timeout, err := setting{cmd, "timeout", envTimeout}.durationValue(f.timeout, projectCfg.TimeoutOr(0), comprasetl.DefaultTimeout)
	errs = append(errs, err)

	stmtTimeout, err := setting{cmd, "statement-timeout", envStatementTimeout}.durationValue(f.statementTimeout, projectCfg.StatementTimeoutOr(0), comprasetl.DefaultStatementTimeout)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return comprasetl.LoadConfig{}, 0, err
	}

	schemaPath := setting{cmd, "schema", envSchema}.stringValue(f.schema, lc.Schema, "")
	schemaSQL, err := schema.Resolve(schemaPath, table, tsColumn)
	if err != nil {
		return comprasetl.LoadConfig{}, 0, err
	}

	connConfig, err := resolveConnection(f.conn, projectCfg)
	if err != nil {
		return comprasetl.LoadConfig{}, 0, err
	}

	cfg := comprasetl.LoadConfig{
		Connection:       *connConfig,
		SchemaSQL:        schemaSQL,
		Table:            table,
		TimestampColumn:  tsColumn,
		BatchSize:        batchSize,
		ConflictPolicy:   policy,
		StatementTimeout: stmtTimeout,
		Parallelism:      parallelism,
		DryRun:           f.dryRun,
	}
	return cfg, timeout, nil
}

func logLoadConfig(logger comprasetl.Logger, cfg comprasetl.LoadConfig) {
	logger.Verbose("Connection resolved: %s (auth: %s)", db.Redact(&cfg.Connection), cfg.Connection.AuthMethod)
	logger.Verbose("Table: %s, timestamp column: %s", cfg.Table, cfg.TimestampColumn)
	logger.Verbose("Statement timeout: %s", cfg.StatementTimeout)
}

func runLoad(cmd *cobra.Command, _ []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	cfg, timeout, err := buildLoadConfig(cmd, &loadFlags, projectCfg)
	if err != nil {
		return err
	}
	logLoadConfig(logger, cfg)

	var yamlDir string
	if projectCfg != nil {
		yamlDir = projectCfg.Paths.ProcessedDir
	}
	inputDir := setting{cmd, "input-dir", envProcessedDir}.stringValue(loadInputDir, yamlDir, comprasetl.DefaultProcessedDir)
	inputs, err := files.RequireInputs(inputDir, ".json")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(timeout)
	defer cancel()

	return executeLoad(ctx, cmd.OutOrStdout(), logger, cfg, inputs)
}

// executeLoad runs the load service and prints the summary for completed
// runs and for runs where files failed.
func executeLoad(ctx context.Context, out io.Writer, logger comprasetl.Logger, cfg comprasetl.LoadConfig, inputs []string) error {
	loader := services.NewLoadService(db.NewStoreOpener(logger), dataset.Read[comprasetl.NormalizedRecord], logger)

	summary, err := loader.Load(ctx, cfg, inputs)
	if err == nil || errors.Is(err, comprasetl.ErrLoadFailed) {
		fmt.Fprintln(out, report.RenderSummary(summary, out == os.Stdout && report.ColorEnabled(os.Stdout)))
	}
	return err
}
