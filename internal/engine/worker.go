package engine

import (
	"context"
	"errors"

	"unionsheets/internal/relation"
	"unionsheets/internal/source"
)

// staging describes one worker's finished staging relation. Ownership,
// including deletion responsibility, transfers to the coordinator as soon as
// ingest returns.
type staging struct {
	name    string
	columns []string
	rows    int64
}

// projectedRows adapts one unit's row stream to the store.RowSource the
// backends consume, reordering cells according to the resolved projection.
type projectedRows struct {
	rows source.Rows
	idx  []int
	buf  []string
}

func (p *projectedRows) Next() ([]string, error) {
	row, err := p.rows.Next()
	if err != nil {
		return nil, err
	}
	if p.buf == nil {
		p.buf = make([]string, len(p.idx))
	}
	for i, j := range p.idx {
		if j < len(row) {
			p.buf[i] = row[j]
		} else {
			p.buf[i] = ""
		}
	}
	return p.buf, nil
}

// ingest reads exactly one source unit, applies the projection, and
// materializes the result into a uniquely named staging relation. It never
// retries and never deletes the staging relation it created; on success the
// relation belongs to the coordinator.
func (e *Engine) ingest(ctx context.Context, unit source.Unit, proj relation.Projection, dest string) (staging, *UnitError) {
	fail := func(kind FailureKind, err error) (staging, *UnitError) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = FailureCancelled
		}
		return staging{}, &UnitError{Unit: unit.Label(), Kind: kind, Err: err}
	}

	rows, err := unit.Open(ctx)
	if err != nil {
		return fail(FailureSourceRead, err)
	}
	defer rows.Close()

	cols, idx, err := proj.Resolve(rows.Header())
	if err != nil {
		if proj.Empty() {
			// Duplicate/unusable header with no projection to disambiguate it.
			return fail(FailureSourceRead, err)
		}
		return fail(FailureProjection, err)
	}

	name := e.names.next(dest)
	n, err := e.store.Materialize(ctx, name, cols, &projectedRows{rows: rows, idx: idx})
	if err != nil {
		// A failed load never reaches the coordinator's cleanup path, so the
		// worker drops whatever half-built relation may exist.
		e.dropQuietly(name)
		return fail(FailureSourceRead, err)
	}
	return staging{name: name, columns: cols, rows: n}, nil
}
