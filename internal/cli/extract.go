package cli

import (
	"github.com/spf13/cobra"

	"github.com/vvka-141/comprasetl/internal/files"
	"github.com/vvka-141/comprasetl/internal/logging"
	"github.com/vvka-141/comprasetl/internal/services"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Convert .xlsx spreadsheets into raw JSON datasets",
	Long: `Extract reads the first sheet of every .xlsx file in the raw directory and writes
<name>.json next to it: one object per non-blank row, keyed by the header row.

A spreadsheet that cannot be read is reported and skipped; the others are
still converted, and the command exits non-zero.

Examples:
  comprasetl extract
  comprasetl extract --raw-dir ./planilhas`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

var extractRawDir string

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractRawDir, "raw-dir", comprasetl.DefaultRawDir,
		"Directory with .xlsx files and their extracted JSON (or $"+envRawDir+")")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	logger := logging.NewConsoleLogger(getVerboseFlag(cmd))

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	rawDir, _ := resolvePaths(cmd, extractRawDir, "", projectCfg)

	inputs, err := files.RequireInputs(rawDir, ".xlsx")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(projectCfg.TimeoutOr(comprasetl.DefaultTimeout))
	defer cancel()

	result, err := services.NewPipelineService(logger, parallelism).Extract(ctx, inputs, rawDir)
	if err != nil {
		return err
	}
	return result.Err("extract")
}
