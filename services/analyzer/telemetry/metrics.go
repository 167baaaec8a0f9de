// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

const metricsNamespace = "codeanalyzer"

// DefaultJobName is the Pushgateway job label.
const DefaultJobName = "codeanalyzer"

// Outcome labels.
const (
	StatusOK     = "ok"
	StatusIssues = "issues"
	StatusError  = "error"
)

// RunMetrics holds the Prometheus metrics of one analyzer process.
//
// # Description
//
// Metrics live on a private registry so tests and repeated construction
// never collide with the global one. All methods are no-ops on a nil
// receiver, letting callers run without metrics.
//
// # Thread Safety
//
// All operations are thread-safe.
type RunMetrics struct {
	registry *prometheus.Registry

	// CommitsAnalyzed counts commits recorded in the ledger.
	CommitsAnalyzed prometheus.Counter

	// IssuesFound counts findings across all files.
	IssuesFound prometheus.Counter

	// Notifications counts notification attempts.
	// Labels: status (ok, error)
	Notifications *prometheus.CounterVec

	// FileAnalyses counts backend analyses.
	// Labels: provider, status (ok, issues, error)
	FileAnalyses *prometheus.CounterVec

	// RunDuration measures whole runs.
	RunDuration prometheus.Histogram

	// LastRunSuccess is 1 when the last run completed, 0 when it failed.
	LastRunSuccess prometheus.Gauge

	// LastRunTimestamp is the Unix time the last run finished.
	LastRunTimestamp prometheus.Gauge
}

// NewRunMetrics creates metrics on a fresh registry.
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,
		CommitsAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commits_analyzed_total",
			Help:      "Commits analyzed and recorded",
		}),
		IssuesFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "issues_found_total",
			Help:      "Findings reported by the backend",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by status",
		}, []string{"status"}),
		FileAnalyses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "file_analyses_total",
			Help:      "File analyses by provider and status",
		}, []string{"provider", "status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full analysis run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		LastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_success",
			Help:      "1 if the last run completed, 0 if it failed",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFile records one backend result.
func (m *RunMetrics) ObserveFile(provider string, report datatypes.FileReport) {
	if m == nil {
		return
	}
	status := StatusOK
	switch {
	case report.Failed():
		status = StatusError
	case report.HasIssues():
		status = StatusIssues
	}
	m.FileAnalyses.WithLabelValues(provider, status).Inc()
}

// ObserveNotification records one notification attempt.
func (m *RunMetrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.Notifications.WithLabelValues(status).Inc()
}

// ObserveCommit records a commit written to the ledger.
func (m *RunMetrics) ObserveCommit(issues int) {
	if m == nil {
		return
	}
	m.CommitsAnalyzed.Inc()
	m.IssuesFound.Add(float64(issues))
}

// ObserveRun records the end of a run.
func (m *RunMetrics) ObserveRun(success bool, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(elapsed.Seconds())
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// Push sends the registry to a Pushgateway, replacing the job's group.
//
// # Inputs
//
//   - ctx: Context for the HTTP request.
//   - url: Pushgateway base URL. Empty disables the push.
//   - job: Job label. Defaults to DefaultJobName.
//   - grouping: Extra grouping labels, e.g. branch.
func (m *RunMetrics) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if m == nil || url == "" {
		return nil
	}
	if job == "" {
		job = DefaultJobName
	}
	p := push.New(url, job).Gatherer(m.registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}
