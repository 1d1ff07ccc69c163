package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// mockStore records every call made through the Store and Tx interfaces.
// failOn makes the Nth transactional statement (1-based, counted across all
// transactions) fail with the mapped error.
type mockStore struct {
	mu sync.Mutex

	schemaErr   error
	beginErr    error
	commitErrs  map[int]error // keyed by transaction number, 1-based
	rollbackErr error
	failOn      map[int]error

	calls       []string
	statements  []string
	txCount     int
	closeCount  int
	committed   int
	rolledBack  int
	blockOnExec bool
	// execCancelErr replaces ctx.Err() as the result of a blocked Exec, the
	// way the server answers a cancel request.
	execCancelErr error
}

func (m *mockStore) opener(err error) comprasetl.StoreOpener {
	return func(_ context.Context, _ *comprasetl.ConnectionConfig) (comprasetl.Store, error) {
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func (m *mockStore) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockStore) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	m.record("exec")
	if m.schemaErr != nil {
		return pgconn.CommandTag{}, m.schemaErr
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (m *mockStore) Begin(_ context.Context) (comprasetl.Tx, error) {
	m.record("begin")
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.mu.Lock()
	m.txCount++
	n := m.txCount
	m.mu.Unlock()
	return &mockTx{store: m, n: n}, nil
}

func (m *mockStore) Close() {
	m.record("close")
	m.mu.Lock()
	m.closeCount++
	m.mu.Unlock()
}

func (m *mockStore) count(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

type mockTx struct {
	store *mockStore
	n     int
}

func (tx *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m := tx.store
	m.record("tx.exec")

	m.mu.Lock()
	m.statements = append(m.statements, sql)
	idx := len(m.statements)
	err := m.failOn[idx]
	block := m.blockOnExec
	cancelErr := m.execCancelErr
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		if cancelErr != nil {
			return pgconn.CommandTag{}, cancelErr
		}
		return pgconn.CommandTag{}, ctx.Err()
	}
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	rows := len(args) / comprasetl.ColumnCount
	return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", rows)), nil
}

func (tx *mockTx) Commit(_ context.Context) error {
	m := tx.store
	m.record("commit")
	if err := m.commitErrs[tx.n]; err != nil {
		return err
	}
	m.mu.Lock()
	m.committed++
	m.mu.Unlock()
	return nil
}

func (tx *mockTx) Rollback(ctx context.Context) error {
	m := tx.store
	m.record("rollback")
	m.mu.Lock()
	m.rolledBack++
	m.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return m.rollbackErr
}

// memReader serves datasets from memory keyed by path.
type memReader map[string][]comprasetl.NormalizedRecord

func (r memReader) read(path string) ([]comprasetl.NormalizedRecord, error) {
	recs, ok := r[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file or directory", path)
	}
	return recs, nil
}
