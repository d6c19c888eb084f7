// Command unionsheets merges the units of one tabular container (workbook
// sheets or same-schema CSV files) into a single relation in a backing store,
// then optionally collapses it into a unique-keyed relation.
//
// This file keeps the CLI layer thin: it loads the pipeline config, wires the
// catalog, store, engine, and deduplicator together, and never imports
// database drivers or backend-specific packages directly.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unionsheets/internal/config"
	"unionsheets/internal/dedupe"
	"unionsheets/internal/engine"
	"unionsheets/internal/metrics"
	"unionsheets/internal/metrics/datadog"
	"unionsheets/internal/metrics/prompush"
	"unionsheets/internal/source"
	"unionsheets/internal/source/csvdir"
	"unionsheets/internal/source/workbook"
	"unionsheets/internal/store"

	// register all backends with the store factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "unionsheets/internal/store/all"
)

// main is the entry point for the unionsheets binary. It loads the pipeline
// config, optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env STATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var p config.Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		fatalf("decode config: %v", err)
	}

	// Validate pipeline config.
	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(p.Union.Table, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v backend=%v job=%v", gwURL, backendName, p.Union.Table)
			metrics.SetBackend(b)
			defer flushMetrics()
		}

	case "datadog":
		addr := statsdAddrFlg
		if addr == "" {
			addr = os.Getenv("STATSD_ADDR")
		}
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "unionsheets."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: addr=%v backend=%v", addr, backendName)
			metrics.SetBackend(b)
			defer flushMetrics()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	// Ctrl-C aborts the merge; the engine treats it like any other failure
	// and leaves the store as it found it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := run(ctx, p, *verbose); err != nil {
		// Failure-status counters still need to reach the backend, and
		// os.Exit would skip the deferred flush.
		log.Printf("%v", err)
		flushMetrics()
		os.Exit(1)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// run executes the merge and (optionally) dedupe stages described by p.
func run(ctx context.Context, p config.Pipeline, verbose bool) error {
	catalog, err := newCatalog(p.Source)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, store.Config{Kind: p.Store.Kind, DSN: p.Store.DSN})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	units, err := catalog.Units(ctx)
	if err != nil {
		return fmt.Errorf("enumerate source units: %w", err)
	}
	if p.Source.Kind == "workbook" {
		// Hand-maintained workbooks often carry leftover blank sheets;
		// failing the whole merge over them would be all-or-nothing on noise.
		units = skipEmptyUnits(ctx, units)
	}
	if verbose {
		log.Printf("source %s: %d units", p.Source.Path, len(units))
	}

	// A fresh run replaces any previous result under the same name.
	if err := st.Drop(ctx, p.Union.Table); err != nil {
		return fmt.Errorf("replace %s: %w", p.Union.Table, err)
	}

	eng := engine.New(st)
	merged, err := eng.MergeAll(ctx, units, p.Union.Projections, p.Union.Table, p.Runtime.Workers)
	if err != nil {
		return err
	}
	log.Printf("merged %d units into %s (%d rows)", merged.Units, p.Union.Table, merged.Rows)

	if !p.Unique.Enabled {
		return nil
	}
	if merged.Relation == "" {
		log.Printf("dedupe skipped: no destination relation was materialized")
		return nil
	}

	proj := p.Unique.Projections
	if len(proj) == 1 {
		// Key only: keep one representative value for every other column.
		cols, err := st.Columns(ctx, merged.Relation)
		if err != nil {
			return fmt.Errorf("dedupe: inspect %s: %w", merged.Relation, err)
		}
		proj = dedupe.KeyWithArbitrary(proj[0].Expression, cols)
	}

	out := p.Unique.Table
	if out == "" {
		out = dedupe.DefaultPrefix + merged.Relation
	}
	unique, err := dedupe.New(st).DedupeInto(ctx, merged.Relation, out, proj)
	if err != nil {
		return err
	}
	log.Printf("deduplicated %s into %s (%d unique rows)", merged.Relation, unique.Relation, unique.Rows)
	return nil
}

// skipEmptyUnits drops units that hold no header row at all. Units that fail
// to open for any other reason are kept; those failures are the engine's to
// classify and report.
func skipEmptyUnits(ctx context.Context, units []source.Unit) []source.Unit {
	kept := make([]source.Unit, 0, len(units))
	for _, u := range units {
		rows, err := u.Open(ctx)
		if err != nil {
			if errors.Is(err, source.ErrNoHeader) {
				log.Printf("skipping empty unit %s", u.Label())
				continue
			}
			kept = append(kept, u)
			continue
		}
		_ = rows.Close()
		kept = append(kept, u)
	}
	return kept
}

// newCatalog builds the source catalog for the configured container kind.
func newCatalog(src config.Source) (source.Catalog, error) {
	switch src.Kind {
	case "workbook":
		return workbook.New(src.Path), nil
	case "csvdir":
		opts := []csvdir.Option{}
		if src.Delimiter != "" {
			opts = append(opts, csvdir.WithComma([]rune(src.Delimiter)[0]))
		}
		return csvdir.New(src.Path, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", src.Kind)
	}
}

func flushMetrics() {
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
