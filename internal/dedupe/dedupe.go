// Package dedupe collapses a merged relation into a unique-keyed relation.
//
// The first projection entry is the grouping key; every later entry is a
// combinator expression evaluated once per group (an aggregate, or an
// "arbitrary representative" selector). The output relation is sorted by the
// key ascending so results are deterministic regardless of how the backing
// store iterated the groups.
//
// Two configurations are supported, mirroring the two defaults seen in
// practice: an explicit caller-supplied projection, and KeyWithArbitrary,
// which keeps the key and picks one representative value per remaining
// column. Neither is preferred by the engine; callers choose.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"log"

	"unionsheets/internal/metrics"
	"unionsheets/internal/relation"
	"unionsheets/internal/store"
)

// ErrEmptyProjection is returned when Dedupe is called with zero projection
// entries; without a key there is nothing to group by.
var ErrEmptyProjection = errors.New("dedupe: projection must not be empty")

// DefaultPrefix is prepended to the input relation's name when no explicit
// output name is given.
const DefaultPrefix = "u_"

// Deduplicator produces unique-keyed relations from merged ones.
type Deduplicator struct {
	store store.Store
}

// New returns a Deduplicator backed by st.
func New(st store.Store) *Deduplicator {
	return &Deduplicator{store: st}
}

// Result reports a successful deduplication.
type Result struct {
	// Relation is the unique-keyed output relation's name.
	Relation string

	// Rows is the number of distinct keys (output rows).
	Rows int64
}

// Dedupe groups rel by the projection's key expression and materializes one
// row per distinct key into a new relation named DefaultPrefix+rel.
//
// Applying Dedupe again to its own output with an arbitrary-representative
// projection is a no-op: every group is a singleton, so each combinator
// reproduces its only value. Counting aggregates are not idempotence-safe;
// a second pass sees groups of one.
func (d *Deduplicator) Dedupe(ctx context.Context, rel string, proj relation.Projection) (Result, error) {
	return d.DedupeInto(ctx, rel, DefaultPrefix+rel, proj)
}

// DedupeInto is Dedupe with an explicit output relation name. Any existing
// relation with that name is replaced.
func (d *Deduplicator) DedupeInto(ctx context.Context, rel, out string, proj relation.Projection) (Result, error) {
	if proj.Empty() {
		return Result{}, ErrEmptyProjection
	}
	if rel == "" || out == "" {
		return Result{}, fmt.Errorf("dedupe: relation names must not be empty")
	}

	if err := d.store.Drop(ctx, out); err != nil {
		return Result{}, fmt.Errorf("dedupe: replace %s: %w", out, err)
	}

	key := proj[0].Expression
	n, err := d.store.Aggregate(ctx, out, rel, proj.SelectList(), key)
	if err != nil {
		return Result{}, fmt.Errorf("dedupe: aggregate %s by %s: %w", rel, key, err)
	}

	metrics.RecordRows(out, "unique", n)
	log.Printf("dedupe %s: %d unique rows by key %s -> %s", rel, n, key, out)
	return Result{Relation: out, Rows: n}, nil
}

// KeyWithArbitrary builds the "key plus one representative value per column"
// projection: MIN is the portable arbitrary-value selector available on
// every supported backend. Columns equal to the key are skipped.
func KeyWithArbitrary(key string, columns []string) relation.Projection {
	proj := relation.Projection{{Expression: key}}
	for _, c := range columns {
		if c == key {
			continue
		}
		proj = append(proj, relation.Entry{Expression: "min(" + c + ")", Alias: c})
	}
	return proj
}
