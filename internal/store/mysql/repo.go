// Package mysql implements a MySQL-backed store.Store using database/sql and
// the go-sql-driver. Staging loads use batched multi-row INSERTs inside a
// transaction, MySQL's most efficient bulk path short of LOAD DATA.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	// MySQL driver registration.
	_ "github.com/go-sql-driver/mysql"

	"unionsheets/internal/store"
)

// insertBatchRows is the number of rows packed into one multi-row INSERT.
const insertBatchRows = 500

// Config holds MySQL repository configuration.
type Config struct {
	// DSN is the go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/db".
	DSN string
}

// Repository is a MySQL-backed implementation of store.Store.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a MySQL connection pool and returns a Repository plus a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Materialize creates the named TEXT-typed relation and loads every row from
// src in multi-row INSERT batches inside one transaction.
func (r *Repository) Materialize(ctx context.Context, name string, columns []string, src store.RowSource) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: materialize %s: columns must not be empty", name)
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = ident(c) + " TEXT"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", ident(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		rollback()
		return 0, fmt.Errorf("mysql: create %s: %w", name, err)
	}

	valueTuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	insertPrefix := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ",
		ident(name), strings.Join(mapIdent(columns), ", "),
	)

	var (
		total int64
		args  = make([]any, 0, insertBatchRows*len(columns))
		rows  int
	)

	flush := func() error {
		if rows == 0 {
			return nil
		}
		tuples := strings.TrimSuffix(strings.Repeat(valueTuple+",", rows), ",")
		if _, err := tx.ExecContext(ctx, insertPrefix+tuples, args...); err != nil {
			return fmt.Errorf("mysql: insert into %s: %w", name, err)
		}
		total += int64(rows)
		args = args[:0]
		rows = 0
		return nil
	}

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			rollback()
			return 0, fmt.Errorf("mysql: read source row: %w", err)
		}
		if len(row) != len(columns) {
			rollback()
			return 0, fmt.Errorf("mysql: row has %d values, want %d", len(row), len(columns))
		}
		for _, v := range row {
			args = append(args, v)
		}
		rows++
		if rows == insertBatchRows {
			if err := flush(); err != nil {
				rollback()
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return total, nil
}

// Clone creates dst as a copy of src's schema and rows.
func (r *Repository) Clone(ctx context.Context, dst, src string) (int64, error) {
	q := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", ident(dst), ident(src))
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("mysql: clone %s from %s: %w", dst, src, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	return n, nil
}

// Append inserts all rows of src into dst using an explicit column list.
func (r *Repository) Append(ctx context.Context, dst, src string, columns []string) (int64, error) {
	cols := strings.Join(mapIdent(columns), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", ident(dst), cols, cols, ident(src))
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("mysql: append %s into %s: %w", src, dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	return n, nil
}

// Drop removes the named relation if it exists.
func (r *Repository) Drop(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident(name)); err != nil {
		return fmt.Errorf("mysql: drop %s: %w", name, err)
	}
	return nil
}

// Columns reports the relation's column names in ordinal order.
func (r *Repository) Columns(ctx context.Context, name string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, fmt.Errorf("mysql: columns of %s: %w", name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("mysql: scan column name: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: columns of %s: %w", name, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("mysql: relation %s does not exist", name)
	}
	return cols, nil
}

// Aggregate creates dst by grouping src on keyExpr.
func (r *Repository) Aggregate(ctx context.Context, dst, src string, selectList []string, keyExpr string) (int64, error) {
	if len(selectList) == 0 {
		return 0, fmt.Errorf("mysql: aggregate %s: empty select list", dst)
	}
	q := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT %s FROM %s GROUP BY %s ORDER BY %s",
		ident(dst), strings.Join(selectList, ", "), ident(src), keyExpr, keyExpr,
	)
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("mysql: aggregate into %s: %w", dst, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	return n, nil
}

// ident quotes an identifier for MySQL.
func ident(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ident(c)
	}
	return out
}
