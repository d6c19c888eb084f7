// Package sqlite implements a SQLite-backed store.Store using database/sql.
// Staging loads run as prepared INSERTs inside a transaction; SQLite has no
// dedicated bulk-load API like Postgres COPY, but transactions keep
// performance acceptable for spreadsheet-sized volumes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	// SQLite driver; replace with your preferred driver if desired.
	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"unionsheets/internal/store"
)

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is passed directly to database/sql; for example:
	//
	//	"file:union.db?cache=shared"
	//	"union.db"
	DSN string
}

// Repository is a SQLite-backed implementation of store.Store.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Materialize creates the named TEXT-typed relation and loads every row from
// src inside a single transaction.
func (r *Repository) Materialize(ctx context.Context, name string, columns []string, src store.RowSource) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: materialize %s: columns must not be empty", name)
	}

	defs := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = ident(c) + " TEXT"
		placeholders[i] = "?"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", ident(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		rollback()
		return 0, fmt.Errorf("sqlite: create %s: %w", name, err)
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		ident(name), strings.Join(mapIdent(columns), ", "), strings.Join(placeholders, ", "),
	)
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var total int64
	args := make([]any, len(columns))
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			rollback()
			return 0, fmt.Errorf("sqlite: read source row: %w", err)
		}
		if len(row) != len(columns) {
			rollback()
			return 0, fmt.Errorf("sqlite: row has %d values, want %d", len(row), len(columns))
		}
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			rollback()
			return 0, fmt.Errorf("sqlite: insert into %s: %w", name, err)
		}
		total++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return total, nil
}

// Clone creates dst as a copy of src's schema and rows.
func (r *Repository) Clone(ctx context.Context, dst, src string) (int64, error) {
	q := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", ident(dst), ident(src))
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return 0, fmt.Errorf("sqlite: clone %s from %s: %w", dst, src, err)
	}
	return r.count(ctx, dst)
}

// Append inserts all rows of src into dst using an explicit column list so
// the correspondence never depends on physical column order.
func (r *Repository) Append(ctx context.Context, dst, src string, columns []string) (int64, error) {
	cols := strings.Join(mapIdent(columns), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", ident(dst), cols, cols, ident(src))
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("sqlite: append %s into %s: %w", src, dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}

// Drop removes the named relation if it exists.
func (r *Repository) Drop(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident(name)); err != nil {
		return fmt.Errorf("sqlite: drop %s: %w", name, err)
	}
	return nil
}

// Columns reports the relation's column names in declaration order.
func (r *Repository) Columns(ctx context.Context, name string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", ident(name)))
	if err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("sqlite: scan table_info: %w", err)
		}
		cols = append(cols, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", name, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sqlite: relation %s does not exist", name)
	}
	return cols, nil
}

// Aggregate creates dst by grouping src on keyExpr. The select list and key
// are emitted verbatim; they originate from the caller's projection.
func (r *Repository) Aggregate(ctx context.Context, dst, src string, selectList []string, keyExpr string) (int64, error) {
	if len(selectList) == 0 {
		return 0, fmt.Errorf("sqlite: aggregate %s: empty select list", dst)
	}
	q := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT %s FROM %s GROUP BY %s ORDER BY %s",
		ident(dst), strings.Join(selectList, ", "), ident(src), keyExpr, keyExpr,
	)
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return 0, fmt.Errorf("sqlite: aggregate into %s: %w", dst, err)
	}
	return r.count(ctx, dst)
}

func (r *Repository) count(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident(name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", name, err)
	}
	return n, nil
}

// ident quotes an identifier for SQLite.
func ident(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ident(c)
	}
	return out
}
