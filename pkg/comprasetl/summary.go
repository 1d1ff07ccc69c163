package comprasetl

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// LoadStatus is the outcome of a file transaction or of a whole run.
type LoadStatus string

const (
	// StatusCommitted means every batch was written and committed.
	StatusCommitted LoadStatus = "committed"

	// StatusNoop means there was nothing to write; no transaction was opened.
	StatusNoop LoadStatus = "noop"

	// StatusRolledBack means a batch or the commit failed and the
	// transaction was rolled back.
	StatusRolledBack LoadStatus = "rolled_back"

	// StatusFailed means the work failed before a transaction was opened
	// (unreadable dataset, connection or schema failure).
	StatusFailed LoadStatus = "failed"
)

// FileSummary reports what happened to one input dataset.
type FileSummary struct {
	Name             string
	RecordsRead      int
	RecordsValidated int
	RecordsSkipped   int
	RecordsInserted  int64
	Batches          int
	Status           LoadStatus

	// Err is the error that prevented the commit, if any.
	Err error

	// RollbackErr is set when ROLLBACK itself failed after Err.
	RollbackErr error
}

// LoadSummary aggregates a load run. It is produced on every path,
// including failures.
type LoadSummary struct {
	RunID          uuid.UUID
	ConflictPolicy ConflictPolicy
	BatchSize      int
	DryRun         bool

	FilesProcessed   int
	FilesFailed      int
	RecordsRead      int
	RecordsValidated int
	RecordsSkipped   int
	RecordsInserted  int64

	Status LoadStatus
	Files  []FileSummary

	StartedAt time.Time
	Duration  time.Duration
}

// NewLoadSummary starts a summary for a run with the given settings.
func NewLoadSummary(policy ConflictPolicy, batchSize int) *LoadSummary {
	return &LoadSummary{
		RunID:          uuid.New(),
		ConflictPolicy: policy,
		BatchSize:      batchSize,
		Status:         StatusNoop,
		StartedAt:      time.Now(),
	}
}

// AddFile records a file outcome and accumulates the run counters.
// Inserted rows only count when the file's transaction committed.
func (s *LoadSummary) AddFile(f FileSummary) {
	if f.Status != StatusCommitted {
		f.RecordsInserted = 0
	}
	s.Files = append(s.Files, f)
	s.FilesProcessed++
	s.RecordsRead += f.RecordsRead
	s.RecordsValidated += f.RecordsValidated
	s.RecordsSkipped += f.RecordsSkipped
	s.RecordsInserted += f.RecordsInserted
	if f.Status == StatusRolledBack || f.Status == StatusFailed {
		s.FilesFailed++
	}
}

// Finish derives the run status from the file outcomes and stamps the
// duration. A run already marked failed stays failed.
func (s *LoadSummary) Finish() {
	s.Duration = time.Since(s.StartedAt)
	if s.Status == StatusFailed {
		return
	}

	status := StatusNoop
	for _, f := range s.Files {
		switch f.Status {
		case StatusRolledBack:
			status = StatusRolledBack
		case StatusFailed:
			if status != StatusRolledBack {
				status = StatusFailed
			}
		case StatusCommitted:
			if status == StatusNoop {
				status = StatusCommitted
			}
		}
	}
	s.Status = status
}

// Failed reports whether the run ended in a non-success status.
func (s *LoadSummary) Failed() bool {
	return s.Status == StatusRolledBack || s.Status == StatusFailed
}

// Preview shortens msg to at most n characters, appending "..." when
// anything was cut. Multi-byte characters are never split.
func Preview(msg string, n int) string {
	if utf8.RuneCountInString(msg) <= n {
		return msg
	}
	count := 0
	for i := range msg {
		if count == n {
			return msg[:i] + "..."
		}
		count++
	}
	return msg
}
