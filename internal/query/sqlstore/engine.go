package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/insightx/insightx/internal/query"
)

type Options struct {
	// ReadOnlyTx runs every statement inside a read-only transaction. Postgres
	// enforces it server side; SQLite relies on the mode=ro DSN instead.
	ReadOnlyTx bool
}

type Engine struct {
	db   *sql.DB
	opts Options
}

func NewEngine(db *sql.DB, opts Options) *Engine {
	return &Engine{db: db, opts: opts}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e.db == nil {
		return query.Result{}, &query.ExecutionError{SQL: request.SQL, Err: fmt.Errorf("dataset connection is required")}
	}
	sqlText, err := query.PrepareReadOnly(request.SQL)
	if err != nil {
		return query.Result{}, &query.ExecutionError{SQL: request.SQL, Err: err}
	}
	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	start := time.Now()
	var rows *sql.Rows
	if e.opts.ReadOnlyTx {
		tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return query.Result{}, &query.ExecutionError{SQL: request.SQL, Err: fmt.Errorf("begin read-only transaction: %w", err)}
		}
		defer func() { _ = tx.Rollback() }()
		rows, err = tx.QueryContext(ctx, sqlText)
		if err != nil {
			return query.Result{}, &query.ExecutionError{SQL: request.SQL, Err: err}
		}
	} else {
		rows, err = e.db.QueryContext(ctx, sqlText)
		if err != nil {
			return query.Result{}, &query.ExecutionError{SQL: request.SQL, Err: err}
		}
	}
	defer func() { _ = rows.Close() }()

	result, err := scanRows(rows)
	if err != nil {
		return query.Result{}, &query.ExecutionError{SQL: request.SQL, Err: err}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func scanRows(rows *sql.Rows) (query.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]query.Value, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make([]query.Value, len(values))
		for i, value := range values {
			row[i] = query.FromDriver(value)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return query.Result{Columns: columns, Rows: resultRows}, nil
}
