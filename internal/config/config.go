// Package config defines the canonical, JSON-serializable configuration model
// for the unionsheets application. It is intentionally small, explicit, and
// dependency-free so that pipelines can be loaded from disk (or other
// sources) and passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in pipeline
//     files.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library.
//
// Example (trimmed):
//
//	{
//	  "source":  { "kind": "workbook", "path": "report.xlsx" },
//	  "store":   { "kind": "sqlite", "dsn": "union.db" },
//	  "union":   { "table": "merged", "projections": [["x", null], ["y", null]] },
//	  "unique":  { "enabled": true, "projections": [["x", null], ["count(*)", "n"]] },
//	  "runtime": { "workers": 4 }
//	}
package config

import "unionsheets/internal/relation"

// Pipeline describes one full ingest → merge → dedupe run in JSON. It is the
// top-level object decoded from a pipeline file.
type Pipeline struct {
	// Source describes the tabular container whose units are ingested.
	Source Source `json:"source"`

	// Store selects the backing relational store the relations live in.
	Store Store `json:"store"`

	// Union configures the merge stage: destination table and the optional
	// ingestion projection.
	Union Union `json:"union"`

	// Unique configures the optional deduplication stage.
	Unique Unique `json:"unique"`

	// Runtime controls concurrency.
	Runtime RuntimeConfig `json:"runtime"`
}

// Source identifies the tabular container. Additional kinds can be added
// over time.
type Source struct {
	// Kind selects the catalog implementation: "workbook" (one .xlsx file,
	// each sheet is a unit) or "csvdir" (a directory of same-schema CSV
	// files, each file is a unit).
	Kind string `json:"kind"`

	// Path is the workbook file or CSV directory.
	Path string `json:"path"`

	// Delimiter is the CSV field delimiter for the "csvdir" kind; defaults
	// to a comma. Ignored for workbooks.
	Delimiter string `json:"delimiter,omitempty"`
}

// Store selects and parameterizes the backing store.
type Store struct {
	// Kind selects the registered backend: "sqlite", "postgres", "mysql",
	// or "mssql".
	Kind string `json:"kind"`

	// DSN is passed verbatim to the backend's driver.
	DSN string `json:"dsn"`
}

// Union configures the merge stage.
type Union struct {
	// Table is the destination relation name.
	Table string `json:"table"`

	// Projections selects which source columns to keep, in the
	// [["expr", "alias"|null], ...] pair format. Empty means all columns.
	Projections relation.Projection `json:"projections,omitempty"`
}

// Unique configures the deduplication stage.
type Unique struct {
	// Enabled turns deduplication on. When false the pipeline stops after
	// the merge.
	Enabled bool `json:"enabled"`

	// Table is the output relation name; empty means "u_" + union.table.
	Table string `json:"table,omitempty"`

	// Projections is the dedup projection: entry 0 is the grouping key, the
	// rest are combinator expressions. Must be non-empty when Enabled.
	Projections relation.Projection `json:"projections,omitempty"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// Workers bounds how many source units are ingested at once. Values
	// below 1 run sequentially; values above the unit count are clamped.
	Workers int `json:"workers"`
}
