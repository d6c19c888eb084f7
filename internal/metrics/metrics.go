// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the merge engine.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the store abstraction pattern used elsewhere in the project
//     (store.Store + registry), allowing the rest of the codebase to depend
//     only on this interface while concrete metric systems stay isolated in
//     subpackages.
//
// The primary use case is instrumentation of the ingest/merge/dedupe stages
// without coupling the engine to Prometheus or Datadog specifically.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}

func (nopBackend) Flush() error { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordUnit measures one source unit's ingestion: latency plus a
// success/failure counter, labeled by destination relation and unit.
func RecordUnit(dest, unit string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"dest":   dest,
		"unit":   unit,
		"status": status,
	}

	backend.IncCounter("union_units_total", 1, lbls)
	backend.ObserveHistogram("union_unit_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given destination and
// kind.
//
// Typical kinds mirror the merge summary fields, e.g.:
//   - "staged"   rows materialized into staging relations
//   - "merged"   rows folded into the destination relation
//   - "unique"   rows surviving deduplication
func RecordRows(dest, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("union_rows_total", float64(delta), Labels{
		"dest": dest,
		"kind": kind,
	})
}

// RecordMerge measures one whole mergeAll call, labeled by outcome.
func RecordMerge(dest string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"dest":   dest,
		"status": status,
	}
	backend.IncCounter("union_merges_total", 1, lbls)
	backend.ObserveHistogram("union_merge_duration_seconds", d.Seconds(), lbls)
}
