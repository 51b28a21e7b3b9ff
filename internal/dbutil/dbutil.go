// Package dbutil has helpers for working with the repository's sqlite database.
package dbutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/brendoncarroll/go-state"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func NewTestDB(t testing.TB) *sqlx.DB {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// DoTx runs fn in a transaction, which is committed if fn returns nil.
func DoTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DoTx1 is DoTx for functions returning a value.
func DoTx1[T any](ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) (T, error)) (T, error) {
	var ret, zero T
	err := DoTx(ctx, db, func(tx *sqlx.Tx) error {
		ret = zero
		var err error
		ret, err = fn(tx)
		return err
	})
	return ret, err
}

// DoTx2 is DoTx for functions returning two values.
func DoTx2[A, B any](ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) (A, B, error)) (A, B, error) {
	var a, zeroA A
	var b, zeroB B
	err := DoTx(ctx, db, func(tx *sqlx.Tx) error {
		a, b = zeroA, zeroB
		var err error
		a, b, err = fn(tx)
		return err
	})
	return a, b, err
}

type ListParams[T any] struct {
	Span state.Span[T]

	MaxLimit     int
	DefaultLimit int
	Limit        int
}

// List runs query with span bounds and a limit applied to primaryKey.
func List[T any](ctx context.Context, db *sqlx.DB, query, primaryKey string, p ListParams[T]) ([]T, error) {
	if p.Limit > p.MaxLimit {
		p.Limit = p.MaxLimit
	}
	if p.Limit <= 0 {
		p.Limit = p.DefaultLimit
	}
	var args []any
	if lower, ok := p.Span.LowerBound(); ok {
		query += fmt.Sprintf(" WHERE %s >= ?", primaryKey)
		args = append(args, lower)
	}
	if upper, ok := p.Span.UpperBound(); ok {
		if len(args) > 0 {
			query += fmt.Sprintf(" AND %s < ?", primaryKey)
		} else {
			query += fmt.Sprintf(" WHERE %s < ?", primaryKey)
		}
		args = append(args, upper)
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT %d", primaryKey, p.Limit)
	return DoTx1(ctx, db, func(tx *sqlx.Tx) (ret []T, _ error) {
		err := tx.Select(&ret, query, args...)
		return ret, err
	})
}
