package store

import (
	"context"
	"errors"
	"testing"
)

// fakeStore is a minimal Store implementation for registry tests.
type fakeStore struct{}

func (fakeStore) Materialize(ctx context.Context, name string, columns []string, src RowSource) (int64, error) {
	return 0, nil
}

func (fakeStore) Clone(ctx context.Context, dst, src string) (int64, error) { return 0, nil }

func (fakeStore) Append(ctx context.Context, dst, src string, columns []string) (int64, error) {
	return 0, nil
}

func (fakeStore) Drop(ctx context.Context, name string) error { return nil }

func (fakeStore) Columns(ctx context.Context, name string) ([]string, error) { return nil, nil }

func (fakeStore) Aggregate(ctx context.Context, dst, src string, selectList []string, keyExpr string) (int64, error) {
	return 0, nil
}

func (fakeStore) Close() error { return nil }

// TestRegisterAndOpen verifies that a registered backend is reachable by
// kind and listed by Kinds.
func TestRegisterAndOpen(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Store, error) {
		return fakeStore{}, nil
	})

	st, err := Open(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if st == nil {
		t.Fatalf("Open returned nil store")
	}

	found := false
	for _, k := range Kinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in Kinds: %v", kind, Kinds())
	}
}

// TestOpen_UnknownKind verifies unsupported kinds return a helpful error.
func TestOpen_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if got, want := err.Error(), `store: no backend registered for kind="does-not-exist"`; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegister_Override verifies that re-registering a kind replaces the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	Register(kind, func(ctx context.Context, cfg Config) (Store, error) {
		return nil, errors.New("first")
	})
	Register(kind, func(ctx context.Context, cfg Config) (Store, error) {
		return fakeStore{}, nil
	})

	if _, err := Open(context.Background(), Config{Kind: kind}); err != nil {
		t.Fatalf("Open after override: %v", err)
	}
}

// TestOpen_FactoryError verifies factory failures pass through verbatim.
func TestOpen_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial failed")
	Register("failing", func(ctx context.Context, cfg Config) (Store, error) {
		return nil, boom
	})
	if _, err := Open(context.Background(), Config{Kind: "failing"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
