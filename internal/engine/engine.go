// Package engine implements the concurrent multi-source merge: a bounded
// pool of ingestion workers reads source units in parallel, each into its own
// staging relation, and a single coordinator folds finished stagings into one
// destination relation in completion order.
//
// The contract is all-or-nothing: the first failure anywhere cancels the
// remaining workers and discards every staging relation plus the destination
// relation itself, so the backing store looks exactly as it did before the
// call. The destination is never visible to callers until MergeAll returns
// successfully.
package engine

import (
	"context"
	"log"
	"time"

	"unionsheets/internal/store"
)

// Engine runs merge calls against one backing store. It is safe for
// concurrent use; every MergeAll call is self-contained and staging names
// never collide across calls.
type Engine struct {
	store store.Store
	names *namer
}

// New returns an Engine backed by st.
func New(st store.Store) *Engine {
	return &Engine{store: st, names: newNamer()}
}

// Result reports a successful merge.
type Result struct {
	// Relation is the destination relation's name. It is empty only in the
	// zero-unit, empty-projection case, where no schema exists to shape a
	// relation from.
	Relation string

	// Rows is the total number of rows folded into the destination.
	Rows int64

	// Units is the number of source units merged.
	Units int
}

// dropQuietly removes a relation outside the caller's context so cleanup
// still runs after cancellation. Drop failures are logged, not propagated;
// there is nothing better to do with them on an already-failing path.
func (e *Engine) dropQuietly(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.store.Drop(ctx, name); err != nil {
		log.Printf("engine: drop %s: %v", name, err)
	}
}
