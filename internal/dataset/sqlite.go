package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// WriteSQLite replaces table with txns inside one transaction, so readers see
// either the old table or the complete new one.
func WriteSQLite(ctx context.Context, db *sql.DB, table string, txns []Transaction) error {
	if db == nil {
		return fmt.Errorf("database is required")
	}
	if err := validateTableName(table); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, txn := range txns {
		if _, err := stmt.ExecContext(ctx, txn.values()...); err != nil {
			return fmt.Errorf("insert row %d (%s): %w", i, txn.TransactionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load transaction: %w", err)
	}
	return nil
}

func createTableSQL(table string) string {
	defs := make([]string, len(columns))
	for i, column := range columns {
		defs[i] = fmt.Sprintf(`"%s" %s`, column.name, column.sqlType)
	}
	return fmt.Sprintf(`CREATE TABLE "%s" (%s)`, table, strings.Join(defs, ", "))
}

func insertSQL(table string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`, table, strings.Join(ColumnNames(), ", "), placeholders)
}
