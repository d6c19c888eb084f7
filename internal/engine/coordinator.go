package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"unionsheets/internal/metrics"
	"unionsheets/internal/relation"
	"unionsheets/internal/source"
)

// outcome is one worker's report for one unit, consumed by the coordinator
// in completion order.
type outcome struct {
	unit string
	stg  staging
	err  *UnitError
}

// emptyRows is a RowSource with no rows, used to shape an empty destination.
type emptyRows struct{}

func (emptyRows) Next() ([]string, error) { return nil, io.EOF }

// MergeAll ingests every unit concurrently and folds the results into the
// destination relation named dest.
//
// Up to workers units are ingested at once (clamped to 1..len(units)). The
// destination is created from the first staging relation to complete and
// every later staging is appended in completion order — not enumeration
// order; callers that care about physical row order must carry an explicit
// per-unit column instead.
//
// The call is atomic: on any failure (including caller cancellation) all
// staging relations and the destination are discarded and a *MergeError is
// returned naming the failing unit. Zero units is not a failure: the result
// has zero rows, and a destination relation is only materialized when the
// projection supplies output columns to shape it with.
func (e *Engine) MergeAll(ctx context.Context, units []source.Unit, proj relation.Projection, dest string, workers int) (Result, error) {
	start := time.Now()
	res, err := e.mergeAll(ctx, units, proj, dest, workers)
	metrics.RecordMerge(dest, err, time.Since(start))
	return res, err
}

func (e *Engine) mergeAll(ctx context.Context, units []source.Unit, proj relation.Projection, dest string, workers int) (Result, error) {
	if dest == "" {
		return Result{}, fmt.Errorf("engine: destination relation name must not be empty")
	}

	if len(units) == 0 {
		log.Printf("merge %s: no source units; nothing to ingest", dest)
		cols := proj.OutputColumns()
		if len(cols) == 0 {
			return Result{}, nil
		}
		for i, c := range cols {
			cols[i] = relation.NormalizeColumn(c)
		}
		if _, err := e.store.Materialize(ctx, dest, cols, emptyRows{}); err != nil {
			return Result{}, fmt.Errorf("engine: create empty destination %s: %w", dest, err)
		}
		return Result{Relation: dest, Units: 0, Rows: 0}, nil
	}

	if workers <= 0 {
		workers = 1
	}
	if workers > len(units) {
		workers = len(units)
	}
	log.Printf("merge %s: %d units, %d workers", dest, len(units), workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unitCh := make(chan source.Unit, len(units))
	for _, u := range units {
		unitCh <- u
	}
	close(unitCh)

	// Buffered to one outcome per unit so a worker never blocks on send and
	// the coordinator can always drain to channel close.
	results := make(chan outcome, len(units))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for unit := range unitCh {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				begin := time.Now()
				stg, uerr := e.ingest(gctx, unit, proj, dest)
				if uerr != nil {
					metrics.RecordUnit(dest, unit.Label(), uerr, time.Since(begin))
					results <- outcome{unit: unit.Label(), err: uerr}
					return uerr
				}
				metrics.RecordUnit(dest, unit.Label(), nil, time.Since(begin))
				results <- outcome{unit: unit.Label(), stg: stg}
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait() // worker failures also arrive through results
		close(results)
	}()

	var (
		created  bool
		schema   []string
		total    int64
		merged   int
		stagings []string

		failedUnit string
		failure    error
	)

	fail := func(unit string, err error) {
		if failure != nil {
			return
		}
		failedUnit, failure = unit, err
		cancel()
	}

	for res := range results {
		if res.err != nil {
			fail(res.unit, res.err)
			continue
		}

		// Ownership of the staging relation transfers here; it is dropped on
		// every exit path below.
		stagings = append(stagings, res.stg.name)
		metrics.RecordRows(dest, "staged", res.stg.rows)

		if failure != nil {
			// Late completion after an observed failure; discard silently.
			continue
		}

		if !created {
			if _, err := e.store.Clone(ctx, dest, res.stg.name); err != nil {
				fail(res.unit, fmt.Errorf("create destination %s: %w", dest, err))
				continue
			}
			created = true
			schema = res.stg.columns
			total += res.stg.rows
			merged++
			log.Printf("merge %s: created from unit %s (+%d rows, total=%d)", dest, res.unit, res.stg.rows, total)
			continue
		}

		if !equalColumns(schema, res.stg.columns) {
			fail(res.unit, &SchemaMismatchError{Unit: res.unit, Want: schema, Got: res.stg.columns})
			continue
		}
		n, err := e.store.Append(ctx, dest, res.stg.name, schema)
		if err != nil {
			fail(res.unit, fmt.Errorf("append unit %s: %w", res.unit, err))
			continue
		}
		total += n
		merged++
		metrics.RecordRows(dest, "merged", n)
		log.Printf("merge %s: folded unit %s (+%d rows, total=%d)", dest, res.unit, n, total)
	}

	// Staging relations are deleted on success and failure alike; on success
	// their rows now live in the destination.
	for _, s := range stagings {
		e.dropQuietly(s)
	}

	if failure == nil && ctx.Err() != nil {
		// Caller cancellation observed between units, with no worker left to
		// report it.
		failure = &UnitError{Unit: "", Kind: FailureCancelled, Err: ctx.Err()}
	}

	if failure != nil {
		if created {
			e.dropQuietly(dest)
		}
		return Result{}, &MergeError{Unit: failedUnit, Err: failure}
	}

	log.Printf("merge %s: done, %d units, %d rows", dest, merged, total)
	return Result{Relation: dest, Rows: total, Units: merged}, nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
