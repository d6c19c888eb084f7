// Package source defines the contracts for enumerating and reading source
// units: the homogeneous chunks of tabular data (one workbook sheet, one CSV
// file) that the merge engine ingests.
//
// A Catalog enumerates units in a deterministic, source-defined order. That
// order does NOT determine merge order; the coordinator folds units in
// completion order. Enumerating zero units is a recognized empty result, not
// an error — callers treat it as a no-op.
package source

import (
	"context"
	"errors"
)

// ErrNotFound is returned by catalogs when the container itself does not
// exist or cannot be read.
var ErrNotFound = errors.New("source: container not found")

// ErrNoHeader is returned by Unit.Open when the unit holds no header row at
// all. Callers that want to tolerate leftover empty sheets or files can test
// for it with errors.Is and drop the unit before merging.
var ErrNoHeader = errors.New("source: unit has no header row")

// Rows is a forward-only reader over one unit's cells. Every cell is already
// a string; the engine treats all source data as text and defers numeric
// interpretation to downstream consumers.
type Rows interface {
	// Header returns the unit's column names. It is valid as soon as Open
	// succeeds and stable for the reader's lifetime.
	Header() []string

	// Next returns the next data row, or io.EOF when the unit is exhausted.
	// The returned slice is only valid until the following call.
	Next() ([]string, error)

	Close() error
}

// Unit identifies one piece of homogeneous tabular data. Units are immutable
// once enumerated and are consumed exactly once by one ingestion worker.
type Unit interface {
	// Label is a stable, human-readable identifier (sheet name, file path)
	// used in logs and error reports.
	Label() string

	// Open starts reading the unit. The engine calls Open at most once.
	Open(ctx context.Context) (Rows, error)
}

// Catalog enumerates the source units of one tabular container.
type Catalog interface {
	Units(ctx context.Context) ([]Unit, error)
}
