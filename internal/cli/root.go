package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/comprasetl/internal/config"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

var rootCmd = &cobra.Command{
	Use:   "comprasetl",
	Short: "Public procurement spreadsheet ETL into PostgreSQL",
	Long: `comprasetl turns public procurement spreadsheets into rows of a PostgreSQL table.

Stages:
  extract    .xlsx files in the raw directory -> <name>.json
  transform  raw .json files -> <name>_normalized.json in the processed directory
  load       normalized datasets -> validated, batched INSERTs, one transaction per file
  run        all three in order

Configuration precedence: flags > environment (.env is loaded) > comprasetl.yaml > defaults.

Exit Codes:
  0  - Success
  1  - General error (extract or transform failures)
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database connection failed
  13 - Schema or batch execution failed
  14 - Setup error (schema unreadable, input directory missing, no input files)`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvironment,
}

var (
	envFile     string
	parallelism int
)

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// -h belongs to --host, as in psql.
	rootCmd.PersistentFlags().Bool("help", false, "Help for comprasetl")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"Environment file with DB_* connection variables\n"+
			"A missing default .env is ignored; an explicit path must exist")
	rootCmd.PersistentFlags().IntVar(&parallelism, "parallelism", comprasetl.DefaultParallelism,
		"Files read, converted or validated concurrently")
}

// loadEnvironment loads the .env file without overriding variables that are
// already set in the process environment.
func loadEnvironment(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil {
		if cmd.Flags().Changed("env-file") || !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w: %w", envFile, comprasetl.ErrSetup, err)
		}
	}
	return nil
}

// loadProjectConfig reads comprasetl.yaml from the working directory.
// A missing file yields nil.
func loadProjectConfig() (*config.ProjectConfig, error) {
	projectCfg, err := config.Load(".")
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return projectCfg, nil
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
