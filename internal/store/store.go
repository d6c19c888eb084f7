// Package store defines the backing-store contract the merge engine relies
// on, plus a factory/registry so callers stay backend-agnostic.
//
// The engine needs exactly four relational capabilities from its store:
// create a named relation from projected source rows, append one relation
// into another, drop a relation by name, and group/aggregate a relation into
// a new one. Everything else (schema probing, row counting) exists for
// observability and tests.
//
// Concrete backends (sqlite, postgres, mysql, mssql) live in subpackages and
// register themselves with the factory in init(); importing
// unionsheets/internal/store/all (typically as a blank import in a wiring
// layer) makes every built-in backend available by kind.
package store

import (
	"context"
	"fmt"
	"sync"
)

// RowSource is a forward-only stream of uniform-width text rows consumed by
// Materialize. Next returns io.EOF after the last row; the returned slice is
// only valid until the following call.
type RowSource interface {
	Next() ([]string, error)
}

// Store is the capability surface the engine requires from a relational
// backing store. Every relation it manages holds text-typed columns only;
// numeric interpretation is deferred to downstream consumers.
type Store interface {
	// Materialize creates the named relation with the given text columns and
	// bulk-loads every row from src into it. It returns the row count.
	Materialize(ctx context.Context, name string, columns []string, src RowSource) (int64, error)

	// Clone creates dst as a copy of src's schema and rows.
	Clone(ctx context.Context, dst, src string) (int64, error)

	// Append inserts all rows of src into dst. The columns slice fixes the
	// column correspondence; both relations must carry exactly these columns.
	Append(ctx context.Context, dst, src string, columns []string) (int64, error)

	// Drop removes the named relation. Dropping a relation that does not
	// exist is a no-op.
	Drop(ctx context.Context, name string) error

	// Columns reports the named relation's column names in order.
	Columns(ctx context.Context, name string) ([]string, error)

	// Aggregate creates dst from src by grouping on keyExpr, evaluating the
	// rendered selectList items per group, ordered by the key ascending. It
	// returns dst's row count.
	Aggregate(ctx context.Context, dst, src string, selectList []string, keyExpr string) (int64, error)

	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	// Kind selects the registered backend: "sqlite", "postgres", "mysql",
	// "mssql".
	Kind string

	// DSN is passed verbatim to the backend's driver.
	DSN string
}

// Factory constructs a Store for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a backend kind. It is
// typically called from backend packages' init() functions.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Open constructs a Store using the factory registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: no backend registered for kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds. Intended for CLI diagnostics.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
