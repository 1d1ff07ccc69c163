package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/comprasetl/internal/batch"
	"github.com/vvka-141/comprasetl/internal/db"
	"github.com/vvka-141/comprasetl/internal/validate"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// DatasetReader reads one normalized dataset file.
type DatasetReader func(path string) ([]comprasetl.NormalizedRecord, error)

type loadState int

const (
	stateDisconnected loadState = iota
	stateConnected
	stateSchemaApplied
	stateTransactionOpen
	stateCommitted
	stateRolledBack
)

func (s loadState) String() string {
	switch s {
	case stateDisconnected:
		return "Disconnected"
	case stateConnected:
		return "Connected"
	case stateSchemaApplied:
		return "SchemaApplied"
	case stateTransactionOpen:
		return "TransactionOpen"
	case stateCommitted:
		return "Committed"
	case stateRolledBack:
		return "RolledBack"
	default:
		return fmt.Sprintf("loadState(%d)", int(s))
	}
}

// filePlan is the prepared, store-independent work for one dataset.
type filePlan struct {
	path       string
	read       int
	validated  int
	skipped    int
	statements []batch.Statement
	err        error
}

func (p *filePlan) summary(status comprasetl.LoadStatus) comprasetl.FileSummary {
	return comprasetl.FileSummary{
		Name:             filepath.Base(p.path),
		RecordsRead:      p.read,
		RecordsValidated: p.validated,
		RecordsSkipped:   p.skipped,
		Batches:          len(p.statements),
		Status:           status,
		Err:              p.err,
	}
}

// LoadService orchestrates a load run: prepare every dataset, connect, apply
// the schema, then write each file inside its own transaction.
type LoadService struct {
	openStore   comprasetl.StoreOpener
	readDataset DatasetReader
	logger      comprasetl.Logger
}

// NewLoadService creates a new LoadService with the given dependencies.
// Panics if any required dependency is nil, as this indicates a programming
// error in wiring rather than a runtime condition.
func NewLoadService(openStore comprasetl.StoreOpener, readDataset DatasetReader, logger comprasetl.Logger) *LoadService {
	if openStore == nil {
		panic("openStore cannot be nil")
	}
	if readDataset == nil {
		panic("readDataset cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	return &LoadService{
		openStore:   openStore,
		readDataset: readDataset,
		logger:      logger,
	}
}

// Load runs the load for files in the given order. The returned summary is
// never nil. A file that fails is rolled back without stopping later files;
// the run then returns an error wrapping ErrLoadFailed. Connection and
// schema failures abort the run.
func (s *LoadService) Load(ctx context.Context, cfg comprasetl.LoadConfig, files []string) (*comprasetl.LoadSummary, error) {
	cfg.ApplyDefaults()
	summary := comprasetl.NewLoadSummary(cfg.ConflictPolicy, cfg.BatchSize)
	summary.DryRun = cfg.DryRun

	if err := cfg.Validate(); err != nil {
		return s.abort(summary, nil, err)
	}
	if len(files) == 0 {
		return s.abort(summary, nil, fmt.Errorf("nothing to load: %w", comprasetl.ErrNoInput))
	}

	s.logger.Info("Loading %d file(s) into %s (conflict policy: %s, batch size: %d)",
		len(files), cfg.Table, cfg.ConflictPolicy, cfg.BatchSize)

	plans, err := s.prepare(ctx, cfg, files)
	if err != nil {
		return s.abort(summary, nil, err)
	}

	if cfg.DryRun {
		s.logger.Info("Dry run: no connection opened")
		for _, p := range plans {
			if p.err != nil {
				summary.AddFile(p.summary(comprasetl.StatusFailed))
				continue
			}
			summary.AddFile(p.summary(comprasetl.StatusNoop))
		}
		return s.finish(summary)
	}

	run := &loadRun{svc: s, cfg: cfg, summary: summary}
	return run.execute(ctx, plans)
}

// prepare reads, validates and plans every file concurrently. Per-file read
// failures are recorded on the plan; only cancellation or a planning error
// fails the whole step.
func (s *LoadService) prepare(ctx context.Context, cfg comprasetl.LoadConfig, files []string) ([]*filePlan, error) {
	plans := make([]*filePlan, len(files))
	opts := batch.PlanOptions{
		Table:           cfg.Table,
		TimestampColumn: cfg.TimestampColumn,
		BatchSize:       cfg.BatchSize,
		Policy:          cfg.ConflictPolicy,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := &filePlan{path: path}
			plans[i] = p

			records, err := s.readDataset(path)
			if err != nil {
				p.err = fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
				s.logger.Error("%v", p.err)
				return nil
			}

			res := validate.Validate(records)
			p.read = len(records)
			p.validated = len(res.Tuples)
			p.skipped = res.Skipped()
			for _, r := range res.Rejected {
				s.logger.Verbose("%s: skipped %s", filepath.Base(path), r)
			}
			if p.skipped > 0 {
				s.logger.Warn("%s: %d of %d record(s) rejected by validation", filepath.Base(path), p.skipped, p.read)
			}

			stmts, err := batch.Plan(opts, res.Tuples)
			if err != nil {
				return err
			}
			p.statements = stmts
			s.logger.Verbose("%s: %d record(s) planned in %d batch(es)", filepath.Base(path), p.validated, len(stmts))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// abort marks the run failed and returns err with the summary. Prepared
// files that never reached a transaction are recorded as failed.
func (s *LoadService) abort(summary *comprasetl.LoadSummary, plans []*filePlan, err error) (*comprasetl.LoadSummary, error) {
	for _, p := range plans {
		summary.AddFile(p.summary(comprasetl.StatusFailed))
	}
	summary.Status = comprasetl.StatusFailed
	summary.Finish()
	return summary, err
}

func (s *LoadService) finish(summary *comprasetl.LoadSummary) (*comprasetl.LoadSummary, error) {
	summary.Finish()
	if summary.FilesFailed == 0 {
		return summary, nil
	}

	var first error
	for _, f := range summary.Files {
		if f.Err != nil {
			first = fmt.Errorf("%s: %w", f.Name, f.Err)
			break
		}
	}
	err := fmt.Errorf("%w: %d of %d file(s) not loaded", comprasetl.ErrLoadFailed, summary.FilesFailed, summary.FilesProcessed)
	if first != nil {
		err = fmt.Errorf("%w: %w", err, first)
	}
	return summary, err
}

// loadRun holds the state of a single connected run.
type loadRun struct {
	svc     *LoadService
	cfg     comprasetl.LoadConfig
	summary *comprasetl.LoadSummary
	store   comprasetl.Store
	state   loadState
}

func (r *loadRun) transition(to loadState) {
	r.svc.logger.Verbose("State: %s -> %s", r.state, to)
	r.state = to
}

func (r *loadRun) execute(ctx context.Context, plans []*filePlan) (*comprasetl.LoadSummary, error) {
	logger := r.svc.logger

	logger.Verbose("Connecting to %s:%d/%s", r.cfg.Connection.Host, r.cfg.Connection.Port, r.cfg.Connection.Database)
	store, err := r.svc.openStore(ctx, &r.cfg.Connection)
	if err != nil {
		if !errors.Is(err, comprasetl.ErrConnectionFailed) {
			err = fmt.Errorf("%w: %w", comprasetl.ErrConnectionFailed, err)
		}
		return r.svc.abort(r.summary, plans, err)
	}
	r.store = store

	var closeOnce sync.Once
	defer closeOnce.Do(func() {
		store.Close()
		r.transition(stateDisconnected)
	})
	r.transition(stateConnected)

	if err := r.applySchema(ctx); err != nil {
		return r.svc.abort(r.summary, plans, err)
	}
	r.transition(stateSchemaApplied)

	pending := 0
	for _, p := range plans {
		if p.err == nil && len(p.statements) > 0 {
			pending++
		}
	}
	if pending == 0 {
		logger.Info("No valid records to load")
	}

	for i, p := range plans {
		switch {
		case p.err != nil:
			r.summary.AddFile(p.summary(comprasetl.StatusFailed))
		case len(p.statements) == 0:
			logger.Verbose("%s: nothing to load", filepath.Base(p.path))
			r.summary.AddFile(p.summary(comprasetl.StatusNoop))
		case ctx.Err() != nil:
			for _, rest := range plans[i:] {
				if rest.err == nil && len(rest.statements) == 0 {
					r.summary.AddFile(rest.summary(comprasetl.StatusNoop))
					continue
				}
				if rest.err == nil {
					rest.err = fmt.Errorf("not started: %w", ctx.Err())
				}
				r.summary.AddFile(rest.summary(comprasetl.StatusFailed))
			}
			return r.svc.finish(r.summary)
		default:
			r.summary.AddFile(r.loadFile(ctx, p))
		}
	}

	return r.svc.finish(r.summary)
}

func (r *loadRun) applySchema(ctx context.Context) error {
	opCtx, cancel := r.opContext(ctx)
	defer cancel()

	r.svc.logger.Verbose("Applying schema")
	if _, err := r.store.Exec(opCtx, r.cfg.SchemaSQL); err != nil {
		return withHint(fmt.Errorf("%w: %w", comprasetl.ErrSchemaFailed, err), err)
	}
	return nil
}

// loadFile writes one file inside its own transaction. The first failing
// statement or a failed commit rolls the whole file back.
func (r *loadRun) loadFile(ctx context.Context, p *filePlan) comprasetl.FileSummary {
	logger := r.svc.logger
	fs := p.summary(comprasetl.StatusFailed)

	opCtx, cancel := r.opContext(ctx)
	tx, err := r.store.Begin(opCtx)
	cancel()
	if err != nil {
		fs.Err = withHint(fmt.Errorf("begin transaction: %w", err), err)
		logger.Error("%s: %v", fs.Name, fs.Err)
		return fs
	}
	r.transition(stateTransactionOpen)

	var inserted int64
	for i, stmt := range p.statements {
		opCtx, cancel := r.opContext(ctx)
		tag, err := tx.Exec(opCtx, stmt.SQL, stmt.Args...)
		if ctxErr := opCtx.Err(); err != nil && ctxErr != nil && !errors.Is(err, ctxErr) {
			// The server answered the cancel request with query_canceled.
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		cancel()
		if err != nil {
			logger.Verbose("Failed statement: %s", comprasetl.Preview(stmt.SQL, comprasetl.MaxErrorPreviewLength))
			fs.Err = withHint(fmt.Errorf("%w: batch %d of %d (%d rows): %w",
				comprasetl.ErrBatchFailed, i+1, len(p.statements), stmt.Rows, err), err)
			return r.rollback(ctx, tx, fs)
		}
		inserted += tag.RowsAffected()
		logger.Verbose("%s: batch %d/%d wrote %d row(s)", fs.Name, i+1, len(p.statements), tag.RowsAffected())
	}

	opCtx, cancel = r.opContext(ctx)
	err = tx.Commit(opCtx)
	cancel()
	if err != nil {
		fs.Err = withHint(fmt.Errorf("%w: %w", comprasetl.ErrCommitFailed, err), err)
		return r.rollback(ctx, tx, fs)
	}
	r.transition(stateCommitted)

	fs.Status = comprasetl.StatusCommitted
	fs.RecordsInserted = inserted
	logger.Info("✓ %s: %d row(s) written in %d batch(es)", fs.Name, inserted, len(p.statements))
	return fs
}

// rollback aborts tx on a context that survives cancellation of ctx. A
// rollback failure is recorded next to the original error.
func (r *loadRun) rollback(ctx context.Context, tx comprasetl.Tx, fs comprasetl.FileSummary) comprasetl.FileSummary {
	logger := r.svc.logger
	logger.Error("%s: %v", fs.Name, fs.Err)

	timeout := r.cfg.StatementTimeout
	if timeout <= 0 {
		timeout = comprasetl.DefaultStatementTimeout
	}
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		fs.RollbackErr = fmt.Errorf("%w: %w", comprasetl.ErrRollbackFailed, err)
		logger.Warn("%s: %v", fs.Name, fs.RollbackErr)
	}
	r.transition(stateRolledBack)

	fs.Status = comprasetl.StatusRolledBack
	fs.RecordsInserted = 0
	logger.Info("✗ %s: rolled back", fs.Name)
	return fs
}

func (r *loadRun) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.StatementTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.StatementTimeout)
	}
	return context.WithCancel(ctx)
}

func withHint(wrapped, cause error) error {
	if hint := db.Hint(cause); hint != "" {
		return fmt.Errorf("%w (%s)", wrapped, hint)
	}
	return wrapped
}
