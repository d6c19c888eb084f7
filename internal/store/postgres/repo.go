// Package postgres implements a Postgres-backed store.Store using pgx v5.
// Staging loads go through the COPY protocol with a streaming CopyFromSource,
// so projected rows never accumulate in memory.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"unionsheets/internal/store"
)

// Config holds Postgres repository configuration.
type Config struct {
	// DSN is the connection string for pgxpool.
	DSN string
}

// Repository is a Postgres-backed implementation of store.Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// copySource adapts a store.RowSource to pgx.CopyFromSource.
type copySource struct {
	src   store.RowSource
	width int
	row   []any
	err   error
}

func (c *copySource) Next() bool {
	row, err := c.src.Next()
	if err == io.EOF {
		return false
	}
	if err != nil {
		c.err = err
		return false
	}
	if len(row) != c.width {
		c.err = fmt.Errorf("row has %d values, want %d", len(row), c.width)
		return false
	}
	if c.row == nil {
		c.row = make([]any, c.width)
	}
	for i, v := range row {
		c.row[i] = v
	}
	return true
}

func (c *copySource) Values() ([]any, error) { return c.row, nil }
func (c *copySource) Err() error             { return c.err }

var _ pgx.CopyFromSource = (*copySource)(nil)

// Materialize creates the named TEXT-typed relation and COPYs every row from
// src into it. The relation is dropped again if the COPY fails partway.
func (r *Repository) Materialize(ctx context.Context, name string, columns []string, src store.RowSource) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: materialize %s: columns must not be empty", name)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = ident(c) + " TEXT"
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", ident(name), strings.Join(defs, ", "))
	if _, err := conn.Exec(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("postgres: create %s: %w", name, err)
	}

	n, err := conn.CopyFrom(ctx, pgx.Identifier{name}, columns, &copySource{src: src, width: len(columns)})
	if err != nil {
		_, _ = conn.Exec(ctx, "DROP TABLE IF EXISTS "+ident(name))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy into %s: %s (%s)", name, pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("postgres: copy into %s: %w", name, err)
	}
	return n, nil
}

// Clone creates dst as a copy of src's schema and rows.
func (r *Repository) Clone(ctx context.Context, dst, src string) (int64, error) {
	q := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", ident(dst), ident(src))
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("postgres: clone %s from %s: %w", dst, src, err)
	}
	return tag.RowsAffected(), nil
}

// Append inserts all rows of src into dst using an explicit column list.
func (r *Repository) Append(ctx context.Context, dst, src string, columns []string) (int64, error) {
	cols := strings.Join(mapIdent(columns), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", ident(dst), cols, cols, ident(src))
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("postgres: append %s into %s: %w", src, dst, err)
	}
	return tag.RowsAffected(), nil
}

// Drop removes the named relation if it exists.
func (r *Repository) Drop(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS "+ident(name)); err != nil {
		return fmt.Errorf("postgres: drop %s: %w", name, err)
	}
	return nil
}

// Columns reports the relation's column names in ordinal order. Relations
// managed by this store live unqualified in the connection's current schema.
func (r *Repository) Columns(ctx context.Context, name string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, name)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", name, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("postgres: scan column name: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", name, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("postgres: relation %s does not exist", name)
	}
	return cols, nil
}

// Aggregate creates dst by grouping src on keyExpr.
func (r *Repository) Aggregate(ctx context.Context, dst, src string, selectList []string, keyExpr string) (int64, error) {
	if len(selectList) == 0 {
		return 0, fmt.Errorf("postgres: aggregate %s: empty select list", dst)
	}
	q := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT %s FROM %s GROUP BY %s ORDER BY %s",
		ident(dst), strings.Join(selectList, ", "), ident(src), keyExpr, keyExpr,
	)
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("postgres: aggregate into %s: %w", dst, err)
	}
	return tag.RowsAffected(), nil
}

// ident quotes an identifier for Postgres.
func ident(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = ident(c)
	}
	return out
}
