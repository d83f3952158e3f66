// Package dbx holds the database/sql plumbing shared by the PostgreSQL
// repositories: the DBTX handle, transaction helpers and error classifiers.
package dbx

import (
	"context"
	"database/sql"
	"errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so a repository works the
// same inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner starts transactions. *sql.DB satisfies it, *sql.Tx does not.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx runs fn in a new transaction. The transaction is committed when fn
// returns nil and rolled back when fn fails or panics; panics propagate.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    if err := users.Create(ctx, tx, u); err != nil {
//	        return err
//	    }
//	    return tokens.Create(ctx, tx, u.ID)
//	})
func WithTx(ctx context.Context, db Beginner, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err != nil {
			err = errors.Join(err, rbErr)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// InTx runs fn inside a transaction when db can begin one. When db is
// already a transaction handle, fn joins it and the outer owner commits.
func InTx(ctx context.Context, db DBTX, fn func(ctx context.Context, tx DBTX) error) error {
	if b, ok := db.(Beginner); ok {
		return WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, db)
}
