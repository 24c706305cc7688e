package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DB can hand out transactions on top of plain execution. *sql.DB does
	// not satisfy it directly; storage adapters wrap it.
	DB interface {
		DBExecutor

		BeginTx(ctx context.Context, opts *sql.TxOptions) (DBTransactor, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AtomicFunc runs within a single DB transaction when passed to Atomic.
type AtomicFunc func(tx DBTransactor) error

// Atomic runs fn in a transaction; it commits on nil error and rolls back
// otherwise. A rollback failure is reported as a shutdown error since the
// connection state can no longer be trusted.
func Atomic(ctx context.Context, db DB, fn AtomicFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewShutdownError("rolling back transaction: " + rbErr.Error())
		}
		return err
	}
	return tx.Commit()
}
