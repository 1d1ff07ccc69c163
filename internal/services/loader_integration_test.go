package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/comprasetl/internal/dataset"
	"github.com/vvka-141/comprasetl/internal/db"
	"github.com/vvka-141/comprasetl/internal/logging"
	"github.com/vvka-141/comprasetl/internal/schema"
	"github.com/vvka-141/comprasetl/internal/services"
	testhelpers "github.com/vvka-141/comprasetl/internal/testing"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

func writeDataset(t *testing.T, dir, name string, records ...comprasetl.NormalizedRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, dataset.Write(path, records))
	return path
}

func integrationConfig(cfg *comprasetl.ConnectionConfig, policy comprasetl.ConflictPolicy) comprasetl.LoadConfig {
	return comprasetl.LoadConfig{
		Connection:       *cfg,
		SchemaSQL:        schema.Default(comprasetl.DefaultTable, comprasetl.DefaultTimestampColumn),
		ConflictPolicy:   policy,
		BatchSize:        2,
		StatementTimeout: 30 * time.Second,
	}
}

func newLoader() *services.LoadService {
	lg := logging.NewNullLogger()
	return services.NewLoadService(db.NewStoreOpener(lg), dataset.Read[comprasetl.NormalizedRecord], lg)
}

func TestLoadIntegration_HappyPath(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	connCfg := testhelpers.CreateTestDB(t, connString)
	dir := t.TempDir()

	path := writeDataset(t, dir, "compras_sp_normalized.json",
		comprasetl.NormalizedRecord{"uf": "sp", "orgao": " Prefeitura ", "item": "Caneta", "quantidade": "10", "valor_unitario": "2.5"},
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "Prefeitura", "item": "Lápis", "quantidade": 3.0, "valor_unitario": 0.0},
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "Prefeitura", "item": "Borracha", "quantidade": 1.0, "valor_unitario": 1.0},
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "", "item": "Régua", "quantidade": 1.0, "valor_unitario": 1.0},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := newLoader().Load(ctx, integrationConfig(connCfg, comprasetl.ConflictInsertOnly), []string{path})

	require.NoError(t, err)
	assert.Equal(t, comprasetl.StatusCommitted, summary.Status)
	assert.Equal(t, int64(3), summary.RecordsInserted)
	assert.Equal(t, 1, summary.RecordsSkipped)

	pool := testhelpers.GetTestPool(t, connCfg)
	assert.Equal(t, 3, testhelpers.CountRows(t, pool, comprasetl.DefaultTable))

	var uf, orgao string
	var total float64
	err = pool.QueryRow(ctx,
		"SELECT uf, orgao, valor_total::float8 FROM compras_publicas WHERE item = 'Caneta'").Scan(&uf, &orgao, &total)
	require.NoError(t, err)
	assert.Equal(t, "SP", uf)
	assert.Equal(t, "Prefeitura", orgao)
	assert.InDelta(t, 25.0, total, 1e-9)
}

func TestLoadIntegration_InsertOnlyDuplicateRollsBackWholeFile(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	connCfg := testhelpers.CreateTestDB(t, connString)
	dir := t.TempDir()
	ctx := context.Background()

	first := writeDataset(t, dir, "a_normalized.json",
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "A", "item": "x", "quantidade": 1.0, "valor_unitario": 1.0},
	)
	_, err := newLoader().Load(ctx, integrationConfig(connCfg, comprasetl.ConflictInsertOnly), []string{first})
	require.NoError(t, err)

	// Three batches of two; the duplicate sits in the second batch.
	second := writeDataset(t, dir, "b_normalized.json",
		comprasetl.NormalizedRecord{"uf": "RJ", "orgao": "B", "item": "1", "quantidade": 1.0, "valor_unitario": 1.0},
		comprasetl.NormalizedRecord{"uf": "RJ", "orgao": "B", "item": "2", "quantidade": 1.0, "valor_unitario": 1.0},
		comprasetl.NormalizedRecord{"uf": "RJ", "orgao": "B", "item": "3", "quantidade": 1.0, "valor_unitario": 1.0},
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "A", "item": "x", "quantidade": 9.0, "valor_unitario": 9.0},
		comprasetl.NormalizedRecord{"uf": "RJ", "orgao": "B", "item": "5", "quantidade": 1.0, "valor_unitario": 1.0},
	)
	third := writeDataset(t, dir, "c_normalized.json",
		comprasetl.NormalizedRecord{"uf": "MG", "orgao": "C", "item": "z", "quantidade": 2.0, "valor_unitario": 2.0},
	)

	summary, err := newLoader().Load(ctx, integrationConfig(connCfg, comprasetl.ConflictInsertOnly), []string{second, third})

	require.Error(t, err)
	assert.ErrorIs(t, err, comprasetl.ErrBatchFailed)
	assert.True(t, db.IsUniqueViolation(err))
	assert.Equal(t, comprasetl.StatusRolledBack, summary.Files[0].Status)
	assert.NoError(t, summary.Files[0].RollbackErr)
	assert.Equal(t, comprasetl.StatusCommitted, summary.Files[1].Status)

	pool := testhelpers.GetTestPool(t, connCfg)
	assert.Equal(t, 2, testhelpers.CountRows(t, pool, comprasetl.DefaultTable),
		"only the first load and the third file are visible")
}

func TestLoadIntegration_UpsertOverwritesExistingRow(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	connCfg := testhelpers.CreateTestDB(t, connString)
	dir := t.TempDir()
	ctx := context.Background()

	path := writeDataset(t, dir, "a_normalized.json",
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "A", "item": "x", "quantidade": 1.0, "valor_unitario": 1.0},
	)
	_, err := newLoader().Load(ctx, integrationConfig(connCfg, comprasetl.ConflictUpsert), []string{path})
	require.NoError(t, err)

	path = writeDataset(t, dir, "a_normalized.json",
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "A", "item": "x", "quantidade": 4.0, "valor_unitario": 2.5},
	)
	summary, err := newLoader().Load(ctx, integrationConfig(connCfg, comprasetl.ConflictUpsert), []string{path})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.RecordsInserted)

	pool := testhelpers.GetTestPool(t, connCfg)
	assert.Equal(t, 1, testhelpers.CountRows(t, pool, comprasetl.DefaultTable))

	var total float64
	require.NoError(t, pool.QueryRow(ctx, "SELECT valor_total::float8 FROM compras_publicas").Scan(&total))
	assert.InDelta(t, 10.0, total, 1e-9)
}

func TestLoadIntegration_StatementTimeoutKeepsConnectionForNextFile(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	connCfg := testhelpers.CreateTestDB(t, connString)
	dir := t.TempDir()
	ctx := context.Background()

	cfg := integrationConfig(connCfg, comprasetl.ConflictInsertOnly)
	cfg.StatementTimeout = 500 * time.Millisecond

	// An uncommitted row with the same natural key makes the first file's
	// insert wait on the unique index until the statement timeout fires.
	pool := testhelpers.GetTestPool(t, connCfg)
	_, err := pool.Exec(ctx, cfg.SchemaSQL)
	require.NoError(t, err)
	blocker, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = blocker.Rollback(ctx) }()
	_, err = blocker.Exec(ctx,
		"INSERT INTO compras_publicas (uf, orgao, item, quantidade, valor_unitario) VALUES ('SP', 'A', 'x', 1, 1)")
	require.NoError(t, err)

	blocked := writeDataset(t, dir, "a_normalized.json",
		comprasetl.NormalizedRecord{"uf": "SP", "orgao": "A", "item": "x", "quantidade": 2.0, "valor_unitario": 2.0},
	)
	free := writeDataset(t, dir, "b_normalized.json",
		comprasetl.NormalizedRecord{"uf": "MG", "orgao": "C", "item": "z", "quantidade": 2.0, "valor_unitario": 2.0},
	)

	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	summary, err := newLoader().Load(runCtx, cfg, []string{blocked, free})

	require.Error(t, err)
	assert.ErrorIs(t, err, comprasetl.ErrBatchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, summary.Files, 2)
	assert.Equal(t, comprasetl.StatusRolledBack, summary.Files[0].Status)
	assert.NoError(t, summary.Files[0].RollbackErr, "connection survives the timeout")
	assert.Equal(t, comprasetl.StatusCommitted, summary.Files[1].Status, "%v", summary.Files[1].Err)
	assert.Equal(t, int64(1), summary.Files[1].RecordsInserted)

	require.NoError(t, blocker.Rollback(ctx))
	assert.Equal(t, 1, testhelpers.CountRows(t, pool, comprasetl.DefaultTable))
}
