package services

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/comprasetl/internal/dataset"
	"github.com/vvka-141/comprasetl/internal/extract"
	"github.com/vvka-141/comprasetl/internal/files"
	"github.com/vvka-141/comprasetl/internal/transform"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// StageResult is the outcome of converting one input file.
type StageResult struct {
	Input   string
	Output  string
	Records int
	Err     error
}

// StageReport collects the per-file results of a stage in input order.
type StageReport struct {
	Results []StageResult
}

// Failed returns the number of inputs that could not be converted.
func (r StageReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Err summarizes failures, or returns nil when every input converted.
func (r StageReport) Err(stage string) error {
	failed := r.Failed()
	if failed == 0 {
		return nil
	}
	for _, res := range r.Results {
		if res.Err != nil {
			return fmt.Errorf("%s: %d of %d file(s) failed: %s: %w",
				stage, failed, len(r.Results), filepath.Base(res.Input), res.Err)
		}
	}
	return nil
}

// PipelineService runs the file-to-file stages that precede a load:
// spreadsheets to raw JSON, then raw JSON to normalized JSON.
// A failing file is logged and skipped; the other files still convert.
type PipelineService struct {
	logger      comprasetl.Logger
	parallelism int
}

// NewPipelineService creates a PipelineService converting up to parallelism
// files at once. Panics if logger is nil.
func NewPipelineService(logger comprasetl.Logger, parallelism int) *PipelineService {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if parallelism <= 0 {
		parallelism = comprasetl.DefaultParallelism
	}
	return &PipelineService{logger: logger, parallelism: parallelism}
}

// Extract converts every spreadsheet in inputs to <name>.json in outDir.
func (s *PipelineService) Extract(ctx context.Context, inputs []string, outDir string) (StageReport, error) {
	return s.run(ctx, "extract", inputs, outDir, func(in string) StageResult {
		out := files.OutputPath(in, outDir, "", ".json")
		rows, err := extract.ReadFile(in)
		if err != nil {
			return StageResult{Input: in, Output: out, Err: err}
		}
		if err := dataset.Write(out, rows); err != nil {
			return StageResult{Input: in, Output: out, Err: err}
		}
		return StageResult{Input: in, Output: out, Records: len(rows)}
	})
}

// Transform normalizes every raw dataset in inputs to
// <name>_normalized.json in outDir.
func (s *PipelineService) Transform(ctx context.Context, inputs []string, outDir string) (StageReport, error) {
	return s.run(ctx, "transform", inputs, outDir, func(in string) StageResult {
		out := files.OutputPath(in, outDir, comprasetl.NormalizedSuffix, ".json")
		raws, err := dataset.Read[comprasetl.RawRecord](in)
		if err != nil {
			return StageResult{Input: in, Output: out, Err: err}
		}
		if err := dataset.Write(out, transform.NormalizeAll(raws)); err != nil {
			return StageResult{Input: in, Output: out, Err: err}
		}
		return StageResult{Input: in, Output: out, Records: len(raws)}
	})
}

func (s *PipelineService) run(ctx context.Context, stage string, inputs []string, outDir string, convert func(string) StageResult) (StageReport, error) {
	report := StageReport{Results: make([]StageResult, len(inputs))}
	if err := files.EnsureDir(outDir); err != nil {
		return report, err
	}

	s.logger.Verbose("%s: %d file(s) -> %s", stage, len(inputs), outDir)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Results[i] = StageResult{Input: in, Err: err}
				return err
			}
			res := convert(in)
			report.Results[i] = res
			if res.Err != nil {
				s.logger.Error("%s %s: %v", stage, filepath.Base(in), res.Err)
				return nil
			}
			s.logger.Info("✓ %s: %d record(s) -> %s", filepath.Base(in), res.Records, filepath.Base(res.Output))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}
