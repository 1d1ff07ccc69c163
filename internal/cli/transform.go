package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/comprasetl/internal/files"
	"github.com/vvka-141/comprasetl/internal/logging"
	"github.com/vvka-141/comprasetl/internal/services"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Normalize raw JSON datasets",
	Long: `Transform rewrites every raw .json dataset as <name>_normalized.json in the
processed directory: column labels become lowercase ASCII snake_case,
quantidade and valor_unitario become numbers, and valor_total is added.

Examples:
  comprasetl transform
  comprasetl transform --raw-dir ./raw --processed-dir ./processed`,
	Args: cobra.NoArgs,
	RunE: runTransform,
}

var transformFlags struct {
	rawDir       string
	processedDir string
}

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.Flags().StringVar(&transformFlags.rawDir, "raw-dir", comprasetl.DefaultRawDir,
		"Directory with raw .json datasets (or $"+envRawDir+")")
	transformCmd.Flags().StringVar(&transformFlags.processedDir, "processed-dir", comprasetl.DefaultProcessedDir,
		"Directory for normalized datasets (or $"+envProcessedDir+")")
}

// rawDatasets lists the raw .json datasets in dir, leaving out transform
// outputs when both stages share a directory.
func rawDatasets(dir string) ([]string, error) {
	all, err := files.Discover(dir, ".json")
	if err != nil {
		return nil, err
	}
	var raw []string
	for _, path := range all {
		if !files.IsNormalized(path) {
			raw = append(raw, path)
		}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no raw .json files in %s: %w", dir, comprasetl.ErrNoInput)
	}
	return raw, nil
}

func runTransform(cmd *cobra.Command, _ []string) error {
	logger := logging.NewConsoleLogger(getVerboseFlag(cmd))

	projectCfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	rawDir, processedDir := resolvePaths(cmd, transformFlags.rawDir, transformFlags.processedDir, projectCfg)

	inputs, err := rawDatasets(rawDir)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(projectCfg.TimeoutOr(comprasetl.DefaultTimeout))
	defer cancel()

	result, err := services.NewPipelineService(logger, parallelism).Transform(ctx, inputs, processedDir)
	if err != nil {
		return err
	}
	return result.Err("transform")
}
