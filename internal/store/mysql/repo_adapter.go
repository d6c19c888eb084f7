// This adapter wires the MySQL backend into the store-agnostic factory.
package mysql

import (
	"context"

	"unionsheets/internal/store"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ store.Store = (*wrappedRepo)(nil)

// init registers the "mysql" backend with the factory.
func init() {
	store.Register("mysql", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

// wrappedRepo adapts *mysql.Repository to store.Store and provides Close.
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
