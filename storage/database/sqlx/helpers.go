// Package sqlxrepos implements the domain repositories on Postgres.
// Queries are written with ? placeholders and rebound for Postgres; rows
// are scanned with sqlx struct scanning.
package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// selectCtx runs a query and scans all rows into dest, a pointer to a
// slice of db-tagged structs.
func selectCtx(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exe.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	return sqlx.StructScan(rows, dest)
}

func execCtx(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int64, error) {
	res, err := exe.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func countCtx(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int, error) {
	var count int
	if err := exe.QueryRowContext(ctx, rebind(query), args...).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

// classify maps lost serialization and deadlock races to the retryable
// sentinel; everything else passes through.
func classify(err error) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch string(pqErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected:
			return errors.Wrap(core.ErrConcurrentModification, err.Error())
		}
	}
	return err
}

// violatedConstraint reports the name of a violated unique constraint.
func violatedConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// execHolder resolves the executor for a call: the transaction passed by
// the service when there is one, the repository default otherwise.
type execHolder struct {
	exec core.DBExecutor
}

func (h execHolder) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return h.exec
}

// whereClause builds an AND-joined WHERE clause with ? placeholders.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders an ORDER BY clause; fallback applies when the caller
// requests no ordering.
func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
