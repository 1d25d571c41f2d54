// Package database is the PostgreSQL access layer of the lovetree store. It wraps
// pgxpool with startup retries, transaction helpers, error classification and health
// checks.
//
// Example usage:
//
//	pool, err := database.NewPool(ctx, cfg.Database, logger)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.WithTransaction(ctx, func(tx database.Transaction) error {
//	    _, err := tx.Exec(ctx, "DELETE FROM likes WHERE tree_id = $1", treeID)
//	    return err
//	})
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is implemented by both Pool and Transaction, so query code runs unchanged
// inside or outside a transaction.
type Database interface {
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// QueryRow executes a query that returns at most one row. Errors are deferred until
	// Scan; no rows yields pgx.ErrNoRows.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Transaction is a Database that must be committed or rolled back.
type Transaction interface {
	Database

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionFunc runs inside a transaction. A non-nil error rolls it back.
type TransactionFunc func(tx Transaction) error

// TxRunner is a Database that can also run a TransactionFunc atomically. *Pool
// implements it.
type TxRunner interface {
	Database
	WithTransaction(ctx context.Context, fn TransactionFunc) error
}
