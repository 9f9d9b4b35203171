package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Result is what Execute hands back.  Which fields are populated depends on
// the statement: SELECTs fill Rows (or Row when a single row was requested);
// everything else fills LastInsertID and RowsAffected.
type Result struct {
	Rows         []Row
	Row          Row
	LastInsertID int64
	RowsAffected int64
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Execute runs one statement with positional parameters on a pooled
// connection.  For a SELECT it returns every matching row, or only the first
// when fetchOne is set (ErrNoRows if there is none).  For any other statement
// it returns the generated id and affected row count.  Failures are wrapped
// and returned; they are never folded into an empty result.
func (db *DB) Execute(ctx context.Context, query string, fetchOne bool, args ...any) (*Result, error) {
	return execute(ctx, db.DB, query, fetchOne, args...)
}

func execute(ctx context.Context, q querier, query string, fetchOne bool, args ...any) (*Result, error) {
	if isQuery(query) {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("executing query: %w", err)
		}
		return collect(rows, fetchOne)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	out := &Result{}
	// Drivers that cannot report these return an error; zero is the honest answer.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out, nil
}

func isQuery(query string) bool {
	head := strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(head, "select") || strings.HasPrefix(head, "with")
}

func collect(rows *sql.Rows, fetchOne bool) (*Result, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	out := &Result{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		if fetchOne {
			out.Row = row
			break
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	if fetchOne && out.Row == nil {
		return nil, ErrNoRows
	}
	return out, nil
}

// Tx is a transaction checked out of the pool.  It exposes the same Execute
// contract as DB so repository code reads the same in and out of a
// transaction.
type Tx struct {
	tx     *sql.Tx
	driver string
}

// Execute runs a statement inside the transaction.  See DB.Execute.
func (t *Tx) Execute(ctx context.Context, query string, fetchOne bool, args ...any) (*Result, error) {
	return execute(ctx, t.tx, query, fetchOne, args...)
}

// LockClause returns the row-locking suffix for SELECTs that must block
// concurrent writers until the transaction ends.  SQLite serialises writers
// at the connection level and has no such clause.
func (t *Tx) LockClause() string {
	if t.driver == DriverMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// WithTx runs fn in a transaction.  It commits when fn returns nil and rolls
// back when fn returns an error or panics.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, driver: db.driver}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
