// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "store.kind",
// "unique.projections"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownSourceKinds are the catalog implementations built into this binary.
var knownSourceKinds = map[string]bool{
	"workbook": true,
	"csvdir":   true,
}

// knownStoreKinds are the store backends built into this binary.
var knownStoreKinds = map[string]bool{
	"sqlite":   true,
	"postgres": true,
	"mysql":    true,
	"mssql":    true,
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue
// values. Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if p.Source.Kind == "" {
		add(SeverityError, "source.kind", "source kind is required")
	} else if !knownSourceKinds[p.Source.Kind] {
		add(SeverityError, "source.kind", "unknown source kind %q", p.Source.Kind)
	}
	if p.Source.Path == "" {
		add(SeverityError, "source.path", "source path is required")
	}
	if p.Source.Delimiter != "" {
		if p.Source.Kind == "workbook" {
			add(SeverityWarning, "source.delimiter", "delimiter is ignored for workbook sources")
		}
		if len([]rune(p.Source.Delimiter)) != 1 {
			add(SeverityError, "source.delimiter", "delimiter must be a single character, got %q", p.Source.Delimiter)
		}
	}

	if p.Store.Kind == "" {
		add(SeverityError, "store.kind", "store kind is required")
	} else if !knownStoreKinds[p.Store.Kind] {
		add(SeverityError, "store.kind", "unknown store kind %q", p.Store.Kind)
	}
	if p.Store.DSN == "" {
		add(SeverityError, "store.dsn", "store DSN is required")
	}

	if p.Union.Table == "" {
		add(SeverityError, "union.table", "destination table name is required")
	}

	if p.Unique.Enabled {
		if len(p.Unique.Projections) == 0 {
			add(SeverityError, "unique.projections", "deduplication requires at least the key projection entry")
		} else if p.Unique.Projections[0].Expression == "" {
			add(SeverityError, "unique.projections", "dedup key expression must not be empty")
		}
	} else {
		if len(p.Unique.Projections) > 0 {
			add(SeverityWarning, "unique.projections", "projections are set but unique.enabled is false")
		}
		if p.Unique.Table != "" {
			add(SeverityWarning, "unique.table", "table is set but unique.enabled is false")
		}
	}

	if p.Runtime.Workers < 0 {
		add(SeverityWarning, "runtime.workers", "negative workers value %d runs sequentially", p.Runtime.Workers)
	}

	return issues
}
