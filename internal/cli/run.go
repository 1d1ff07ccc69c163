package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/comprasetl/internal/files"
	"github.com/vvka-141/comprasetl/internal/logging"
	"github.com/vvka-141/comprasetl/internal/services"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, transform and load in one go",
	Long: `Run chains the three stages: spreadsheets in the raw directory are extracted,
the raw datasets are normalized into the processed directory, and the
normalized datasets produced by this run are loaded.

Files that fail to extract or transform are reported and left out of the
load. Without any .xlsx file, the raw .json datasets already present are used.

Examples:
  comprasetl run
  comprasetl run --conflict-policy insert-only -d compras`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runFlags struct {
	load         loadFlagValues
	rawDir       string
	processedDir string
}

func init() {
	rootCmd.AddCommand(runCmd)
	registerLoadFlags(runCmd, &runFlags.load)
	runCmd.Flags().StringVar(&runFlags.rawDir, "raw-dir", comprasetl.DefaultRawDir,
		"Directory with .xlsx files and raw datasets (or $"+envRawDir+")")
	runCmd.Flags().StringVar(&runFlags.processedDir, "processed-dir", comprasetl.DefaultProcessedDir,
		"Directory for normalized datasets (or $"+envProcessedDir+")")
}

func runRun(cmd *cobra.Command, _ []string) error {
	logger := logging.NewConsoleLogger(getVerboseFlag(cmd))

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	rawDir, processedDir := resolvePaths(cmd, runFlags.rawDir, runFlags.processedDir, projectCfg)

	// Settings are checked before any file is written.
	cfg, timeout, err := buildLoadConfig(cmd, &runFlags.load, projectCfg)
	if err != nil {
		return err
	}
	logLoadConfig(logger, cfg)

	ctx, cancel := signalContext(timeout)
	defer cancel()

	pipeline := services.NewPipelineService(logger, parallelism)
	var stageErrs []error

	sheets, err := files.Discover(rawDir, ".xlsx")
	if err != nil {
		return err
	}
	if len(sheets) == 0 {
		logger.Warn("No .xlsx files in %s, using existing raw datasets", rawDir)
	} else {
		logger.Info("Extracting %d spreadsheet(s)", len(sheets))
		extracted, err := pipeline.Extract(ctx, sheets, rawDir)
		if err != nil {
			return err
		}
		stageErrs = append(stageErrs, extracted.Err("extract"))
	}

	raw, err := rawDatasets(rawDir)
	if err != nil {
		return errors.Join(append(stageErrs, err)...)
	}

	logger.Info("Transforming %d dataset(s)", len(raw))
	transformed, err := pipeline.Transform(ctx, raw, processedDir)
	if err != nil {
		return err
	}
	stageErrs = append(stageErrs, transformed.Err("transform"))

	var inputs []string
	for _, res := range transformed.Results {
		if res.Err == nil {
			inputs = append(inputs, res.Output)
		}
	}
	if len(inputs) == 0 {
		return errors.Join(append(stageErrs, fmt.Errorf("nothing to load: %w", comprasetl.ErrNoInput))...)
	}

	if err := executeLoad(ctx, cmd.OutOrStdout(), logger, cfg, inputs); err != nil {
		return err
	}
	return errors.Join(stageErrs...)
}
