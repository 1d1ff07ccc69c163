package db

import (
	"context"
	"io"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// Session is a comprasetl.Store backed by one connection acquired from a
// dedicated pool.
//
// Thread-Safety: NOT safe for concurrent use.
//
// Lifecycle:
//  1. Created by Open (connect, ping, acquire)
//  2. Used by one load run
//  3. Released via Close (idempotent): connection, pool, then connector
type Session struct {
	pool      *pgxpool.Pool
	conn      *pgxpool.Conn
	connector comprasetl.Connector
	closeOnce sync.Once
}

// NewSession wraps an acquired connection. Panics if pool or conn is nil.
func NewSession(pool *pgxpool.Pool, conn *pgxpool.Conn, connector comprasetl.Connector) *Session {
	if pool == nil {
		panic("pool cannot be nil")
	}
	if conn == nil {
		panic("conn cannot be nil")
	}
	return &Session{pool: pool, conn: conn, connector: connector}
}

// NewStoreOpener returns a comprasetl.StoreOpener that connects with the
// connector matching each config's auth method.
func NewStoreOpener(logger comprasetl.Logger) comprasetl.StoreOpener {
	return func(ctx context.Context, cfg *comprasetl.ConnectionConfig) (comprasetl.Store, error) {
		return Open(ctx, cfg, logger)
	}
}

// Open connects to the database and acquires the single connection a load
// run works on.
func Open(ctx context.Context, cfg *comprasetl.ConnectionConfig, logger comprasetl.Logger) (*Session, error) {
	connector, err := NewConnector(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Verbose("Connecting to %s", Redact(cfg))
	pool, err := connector.Connect(ctx)
	if err != nil {
		closeConnector(connector)
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		closeConnector(connector)
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}

	return NewSession(pool, conn, connector), nil
}

// Exec runs sql on the session connection outside any transaction.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

// Begin opens a transaction on the session connection.
func (s *Session) Begin(ctx context.Context) (comprasetl.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &sessionTx{tx: tx}, nil
}

// Close releases the connection and closes the pool.
// Safe to call multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.conn.Release()
		s.pool.Close()
		closeConnector(s.connector)
	})
}

// closeConnector releases connector resources such as the Cloud SQL dialer.
func closeConnector(c comprasetl.Connector) {
	if closer, ok := c.(io.Closer); ok {
		_ = closer.Close()
	}
}

type sessionTx struct {
	tx pgx.Tx
}

func (t *sessionTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *sessionTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *sessionTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

var (
	_ comprasetl.Store = (*Session)(nil)
	_ comprasetl.Tx    = (*sessionTx)(nil)
)
