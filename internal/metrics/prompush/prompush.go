// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the engine's labels (dest, unit, status, kind) onto Prometheus
//     labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint; merge runs are batch jobs, not
//     long-lived services.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends (e.g. Datadog, StatsD) without changes to the
// engine.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"unionsheets/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Unit-level metrics
	unitCounter  *prometheus.CounterVec // "union_units_total"
	unitDuration *prometheus.SummaryVec // "union_unit_duration_seconds"

	// Merge-level metrics
	mergeCounter  *prometheus.CounterVec // "union_merges_total"
	mergeDuration *prometheus.SummaryVec // "union_merge_duration_seconds"

	// Row-level metrics
	rowCounter *prometheus.CounterVec // "union_rows_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the destination relation).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "unionsheets"
	}

	reg := prometheus.NewRegistry()

	unitCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "union_units_total",
			Help: "Total number of source units ingested, partitioned by destination and status.",
		},
		[]string{"dest", "status"},
	)
	unitDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "union_unit_duration_seconds",
			Help:       "Duration of per-unit ingestion in seconds, partitioned by destination and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"dest", "status"},
	)
	mergeCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "union_merges_total",
			Help: "Total number of merge calls, partitioned by destination and status.",
		},
		[]string{"dest", "status"},
	)
	mergeDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "union_merge_duration_seconds",
			Help:       "Duration of whole merge calls in seconds, partitioned by destination and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"dest", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "union_rows_total",
			Help: "Row-level counts per kind (staged, merged, unique).",
		},
		[]string{"kind"},
	)

	if err := reg.Register(unitCounter); err != nil {
		return nil, fmt.Errorf("prompush: register unit counter: %w", err)
	}
	if err := reg.Register(unitDuration); err != nil {
		return nil, fmt.Errorf("prompush: register unit summary: %w", err)
	}
	if err := reg.Register(mergeCounter); err != nil {
		return nil, fmt.Errorf("prompush: register merge counter: %w", err)
	}
	if err := reg.Register(mergeDuration); err != nil {
		return nil, fmt.Errorf("prompush: register merge summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		unitCounter:   unitCounter,
		unitDuration:  unitDuration,
		mergeCounter:  mergeCounter,
		mergeDuration: mergeDuration,
		rowCounter:    rowCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "union_units_total":
		if b.unitCounter == nil {
			return
		}
		b.unitCounter.WithLabelValues(labels["dest"], labels["status"]).Add(delta)

	case "union_merges_total":
		if b.mergeCounter == nil {
			return
		}
		b.mergeCounter.WithLabelValues(labels["dest"], labels["status"]).Add(delta)

	case "union_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case "union_unit_duration_seconds":
		if b.unitDuration == nil {
			return
		}
		b.unitDuration.WithLabelValues(labels["dest"], labels["status"]).Observe(value)
	case "union_merge_duration_seconds":
		if b.mergeDuration == nil {
			return
		}
		b.mergeDuration.WithLabelValues(labels["dest"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
