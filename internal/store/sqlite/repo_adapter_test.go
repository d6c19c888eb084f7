package sqlite

import (
	"context"
	"errors"
	"testing"

	"unionsheets/internal/store"
)

// TestFactory_PropagatesOpenError verifies that repository construction
// failures surface through the registry unchanged.
func TestFactory_PropagatesOpenError(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	boom := errors.New("cannot open database")
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		return nil, nil, boom
	}

	_, err := store.Open(context.Background(), store.Config{Kind: "sqlite", DSN: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

// TestWrappedRepoClose verifies Close invokes the cleanup function exactly
// once per call.
func TestWrappedRepoClose(t *testing.T) {
	t.Parallel()

	calls := 0
	w := &wrappedRepo{closeFn: func() { calls++ }}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if calls != 1 {
		t.Fatalf("closeFn calls = %d, want 1", calls)
	}
}
