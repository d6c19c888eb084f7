// This adapter wires the SQL Server backend into the store factory.
package mssql

import (
	"context"

	"unionsheets/internal/store"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ store.Store = (*wrappedRepo)(nil)

// init registers the "mssql" backend with the factory.
func init() {
	store.Register("mssql", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

// wrappedRepo adapts *mssql.Repository to store.Store and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() error {
	if w.closeFn != nil {
		w.closeFn()
	}
	return nil
}
