package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"unionsheets/internal/store"
)

// sliceRows is a RowSource over in-memory rows.
type sliceRows struct {
	rows [][]string
	i    int
	err  error // returned instead of io.EOF when set
}

func (s *sliceRows) Next() ([]string, error) {
	if s.i >= len(s.rows) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	row := s.rows[s.i]
	s.i++
	return row, nil
}

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(closeFn)
	return r
}

// readAll fetches every row of a table ordered by the first column.
func readAll(t *testing.T, r *Repository, table string, cols []string) [][]string {
	t.Helper()
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(mapIdent(cols), ", "), ident(table), ident(cols[0]))
	rows, err := r.db.QueryContext(context.Background(), q)
	if err != nil {
		t.Fatalf("query %s: %v", table, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals := make([]string, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func TestMaterializeAndColumns(t *testing.T) {
	t.Parallel()

	r := openTestRepo(t)
	ctx := context.Background()

	n, err := r.Materialize(ctx, "t", []string{"a", "b"}, &sliceRows{rows: [][]string{{"1", "x"}, {"2", "y"}}})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}

	cols, err := r.Columns(ctx, "t")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if got, want := strings.Join(cols, ","), "a,b"; got != want {
		t.Fatalf("columns = %q, want %q", got, want)
	}

	got := readAll(t, r, "t", cols)
	if len(got) != 2 || got[0][1] != "x" || got[1][1] != "y" {
		t.Fatalf("rows = %v", got)
	}
}

// TestMaterialize_SourceErrorRollsBack verifies that a failing row source
// leaves no partially loaded table behind.
func TestMaterialize_SourceErrorRollsBack(t *testing.T) {
	t.Parallel()

	r := openTestRepo(t)
	ctx := context.Background()

	boom := errors.New("stream broke")
	_, err := r.Materialize(ctx, "t", []string{"a"}, &sliceRows{rows: [][]string{{"1"}}, err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if _, err := r.Columns(ctx, "t"); err == nil {
		t.Fatalf("table t should not exist after rollback")
	}
}

func TestMaterialize_NoColumns(t *testing.T) {
	t.Parallel()

	r := openTestRepo(t)
	if _, err := r.Materialize(context.Background(), "t", nil, &sliceRows{}); err == nil {
		t.Fatalf("expected error for empty column list")
	}
}

func TestCloneAndAppend(t *testing.T) {
	t.Parallel()

	r := openTestRepo(t)
	ctx := context.Background()

	if _, err := r.Materialize(ctx, "s1", []string{"a", "b"}, &sliceRows{rows: [][]string{{"1", "x"}}}); err != nil {
		t.Fatalf("Materialize s1: %v", err)
	}
	if _, err := r.Materialize(ctx, "s2", []string{"a", "b"}, &sliceRows{rows: [][]string{{"2", "y"}, {"3", "z"}}}); err != nil {
		t.Fatalf("Materialize s2: %v", err)
	}

	n, err := r.Clone(ctx, "dest", "s1")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if n != 1 {
		t.Fatalf("cloned rows = %d, want 1", n)
	}

	n, err = r.Append(ctx, "dest", "s2", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n != 2 {
		t.Fatalf("appended rows = %d, want 2", n)
	}

	got := readAll(t, r, "dest", []string{"a", "b"})
	if len(got) != 3 || got[2][0] != "3" {
		t.Fatalf("dest rows = %v", got)
	}
}

func TestDrop_Idempotent(t *testing.T) {
	t.Parallel()

	r := openTestRepo(t)
	ctx := context.Background()

	if _, err := r.Materialize(ctx, "t", []string{"a"}, &sliceRows{rows: [][]string{{"1"}}}); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if err := r.Drop(ctx, "t"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	// Dropping a relation that no longer exists is a no-op.
	if err := r.Drop(ctx, "t"); err != nil {
		t.Fatalf("second Drop: %v", err)
	}
	if err := r.Drop(ctx, "never_existed"); err != nil {
		t.Fatalf("Drop of unknown relation: %v", err)
	}
}

// TestAggregate_CountPerKey groups duplicate keys and counts them, ordered
// by the key ascending.
func TestAggregate_CountPerKey(t *testing.T) {
	t.Parallel()

	r := openTestRepo(t)
	ctx := context.Background()

	rows := [][]string{{"1", "x"}, {"1", "y"}, {"2", "z"}}
	if _, err := r.Materialize(ctx, "t", []string{"a", "b"}, &sliceRows{rows: rows}); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	n, err := r.Aggregate(ctx, "u_t", "t", []string{"a", "count(*) AS n"}, "a")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if n != 2 {
		t.Fatalf("unique rows = %d, want 2", n)
	}

	got := readAll(t, r, "u_t", []string{"a", "n"})
	if got[0][0] != "1" || got[0][1] != "2" {
		t.Fatalf("row[0] = %v, want [1 2]", got[0])
	}
	if got[1][0] != "2" || got[1][1] != "1" {
		t.Fatalf("row[1] = %v, want [2 1]", got[1])
	}
}

// TestAggregate_ArbitraryRepresentative keeps one row per key using min() as
// the representative-value selector.
func TestAggregate_ArbitraryRepresentative(t *testing.T) {
	t.Parallel()

	r := openTestRepo(t)
	ctx := context.Background()

	rows := [][]string{{"k1", "b"}, {"k1", "a"}, {"k2", "c"}}
	if _, err := r.Materialize(ctx, "t", []string{"k", "v"}, &sliceRows{rows: rows}); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	n, err := r.Aggregate(ctx, "u_t", "t", []string{"k", "min(v) AS v"}, "k")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if n != 2 {
		t.Fatalf("unique rows = %d, want 2", n)
	}

	got := readAll(t, r, "u_t", []string{"k", "v"})
	if got[0][1] != "a" || got[1][1] != "c" {
		t.Fatalf("rows = %v", got)
	}
}

// TestIdent covers identifier quoting, including embedded quotes.
func TestIdent(t *testing.T) {
	t.Parallel()

	if got, want := ident(`plain`), `"plain"`; got != want {
		t.Fatalf("ident = %q, want %q", got, want)
	}
	if got, want := ident(`we"ird`), `"we""ird"`; got != want {
		t.Fatalf("ident = %q, want %q", got, want)
	}
}

// TestFactoryRegistration verifies the backend is reachable through the
// store registry.
func TestFactoryRegistration(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "reg.db")
	st, err := store.Open(context.Background(), store.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	if _, err := st.Materialize(context.Background(), "t", []string{"a"}, &sliceRows{rows: [][]string{{"1"}}}); err != nil {
		t.Fatalf("Materialize via registry: %v", err)
	}
	cols, err := st.Columns(context.Background(), "t")
	if err != nil || len(cols) != 1 {
		t.Fatalf("Columns = %v, %v", cols, err)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
