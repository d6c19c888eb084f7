package engine

import (
	"fmt"
	"strings"
)

// FailureKind classifies why a single source unit failed to ingest.
type FailureKind string

const (
	// FailureSourceRead means the unit was unreadable or corrupt.
	FailureSourceRead FailureKind = "source_read"
	// FailureProjection means a projection expression referenced a column
	// the unit does not have.
	FailureProjection FailureKind = "projection"
	// FailureCancelled means the caller's context was cancelled before the
	// unit finished ingesting.
	FailureCancelled FailureKind = "cancelled"
)

// UnitError reports the failure of exactly one source unit. Failures are
// never swallowed by workers; they travel to the coordinator, which is the
// sole abort-vs-continue decision point (policy: always abort-all).
type UnitError struct {
	Unit string
	Kind FailureKind
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %q: %s: %v", e.Unit, e.Kind, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a unit whose projected schema disagrees with
// the first successfully merged unit's schema. Mismatches abort the merge;
// they are never silently coerced into a superset or subset.
type SchemaMismatchError struct {
	Unit string
	Want []string
	Got  []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("unit %q: schema mismatch: want columns [%s], got [%s]",
		e.Unit, strings.Join(e.Want, ", "), strings.Join(e.Got, ", "))
}

// MergeError is the single aggregated failure surfaced by MergeAll. It names
// the first-failing unit and wraps the underlying cause; by the time the
// caller sees it, every staging relation and the destination relation have
// been discarded.
type MergeError struct {
	Unit string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }
