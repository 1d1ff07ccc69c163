package comprasetl

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the relational store as seen by the load orchestrator: a single
// dedicated connection able to run statements and open transactions.
//
// Thread-Safety: NOT safe for concurrent use. A Store is owned by exactly
// one load run; statements are issued sequentially.
type Store interface {
	// Exec executes a statement outside of any explicit transaction.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Begin opens a transaction on the store's connection.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the connection and any pool behind it.
	// Implementations must be idempotent.
	Close()
}

// Tx is an open transaction on a Store.
type Tx interface {
	// Exec executes a statement inside the transaction.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Commit commits the transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction.
	Rollback(ctx context.Context) error
}

// StoreOpener acquires a Store for the given connection parameters.
type StoreOpener func(ctx context.Context, cfg *ConnectionConfig) (Store, error)
