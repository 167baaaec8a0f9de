// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/AleutianAI/CodeAnalyzer/pkg/logging"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/backend"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/config"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/extract"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/ledger"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/notify"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/pipeline"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/policy"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/repo"
	ledgerdb "github.com/AleutianAI/CodeAnalyzer/services/analyzer/storage/badger"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/telemetry"
)

const shutdownTimeout = 5 * time.Second

// app holds every collaborator of one CLI invocation.
type app struct {
	cfg          *config.Config
	logger       *logging.Logger
	tracker      *ledger.Tracker
	orchestrator *pipeline.Orchestrator
	metrics      *telemetry.RunMetrics
	shutdown     telemetry.ShutdownFunc
}

// appOptions carries flag values that shape wiring.
type appOptions struct {
	Verbose     bool
	TraceWriter io.Writer
}

// newApp wires configuration into a ready orchestrator.
//
// # Description
//
// Logging comes first so every later step can report problems. A backend
// or email sender that cannot be built is not fatal: the error is handed
// to the orchestrator, which fails runs without a backend and reports both
// in setup tests. Ledger and repository errors are fatal.
//
// # Outputs
//
//   - *app: Must be closed with Close.
//   - error: Tracing, ledger, repository or pipeline setup failure.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger := newLogger(cfg.Logging, cfg.Telemetry.ServiceName, opts.Verbose)
	a := &app{cfg: cfg, logger: logger, shutdown: func(context.Context) error { return nil }}
	slogger := logger.Slog()

	shutdown, err := telemetry.InitTracing(ctx, cfg.Telemetry, telemetry.TracingOptions{
		Version: version,
		Writer:  opts.TraceWriter,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	a.shutdown = shutdown

	persister, err := openPersister(cfg.Ledger, slogger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = ledger.NewTracker(ctx, persister, slogger)

	backendOpts := backend.Options{
		MaxFileSize: cfg.Analysis.MaxFileSizeBytes,
		Timeout:     cfg.Backend.Timeout,
		Logger:      slogger,
	}
	if cfg.Analysis.RedactSecrets {
		engine, err := policy.New()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("loading credential patterns: %w", err)
		}
		backendOpts.Redactor = engine
	}
	analyzer, analyzerErr := backend.New(cfg.Backend, backendOpts)
	if analyzerErr != nil {
		logger.Warn("analysis backend not available", slog.String("error", analyzerErr.Error()))
	}

	notifier, notifierErr := notify.NewEmailFromConfig(cfg.Email, slogger)
	if notifierErr != nil {
		logger.Warn("email notifications disabled", slog.String("error", notifierErr.Error()))
	}

	git, err := repo.NewGit(repo.Config{
		URL:          cfg.Repository.URL,
		Branch:       cfg.Repository.Branch,
		LocalPath:    cfg.Repository.LocalPath,
		Window:       cfg.Repository.CommitWindow,
		CloneTimeout: cfg.Repository.CloneTimeout,
		Logger:       slogger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("configuring repository: %w", err)
	}

	a.metrics = telemetry.NewRunMetrics()
	deps := pipeline.Dependencies{
		Repo:    git,
		Tracker: a.tracker,
		Filter: extract.Filter{
			Sentinel: cfg.Analysis.SentinelFile,
			Exclude:  cfg.Analysis.Exclude,
		},
		Metrics:     a.metrics,
		Branch:      cfg.Repository.Branch,
		Concurrency: cfg.Backend.Concurrency,
		Logger:      slogger,
	}
	// Typed nil pointers must not reach the interface fields.
	if analyzerErr == nil {
		deps.Analyzer = analyzer
	} else {
		deps.AnalyzerErr = analyzerErr
	}
	if notifierErr == nil {
		deps.Notifier = notifier
	} else {
		deps.NotifierErr = notifierErr
	}

	a.orchestrator, err = pipeline.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close flushes traces and releases the ledger and log file.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("trace flush failed", slog.String("error", err.Error()))
	}
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			a.logger.Warn("closing ledger failed", slog.String("error", err.Error()))
		}
	}
	_ = a.logger.Close()
}

// pushMetrics sends run metrics to the configured Pushgateway.
func (a *app) pushMetrics(ctx context.Context) {
	url := a.cfg.Telemetry.PushgatewayURL
	if url == "" {
		return
	}
	grouping := map[string]string{"branch": a.cfg.Repository.Branch}
	if err := a.metrics.Push(ctx, url, telemetry.DefaultJobName, grouping); err != nil {
		a.logger.Warn("pushing run metrics failed", slog.String("url", url), slog.String("error", err.Error()))
	}
}

func newLogger(cfg config.LoggingConfig, service string, verbose bool) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogFile: cfg.File,
		Service: service,
		JSON:    cfg.JSON,
	})
	if err != nil {
		logger.Warn("unknown log level, using INFO", slog.String("level", cfg.Level))
	}
	return logger
}

// openPersister builds the ledger persister selected by cfg.Backend.
func openPersister(cfg config.LedgerConfig, logger *slog.Logger) (ledger.Persister, error) {
	switch cfg.Backend {
	case config.LedgerBadger:
		dbCfg := ledgerdb.DefaultConfig(cfg.BadgerDir)
		dbCfg.Logger = logger
		db, err := ledgerdb.Open(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("opening ledger database: %w", err)
		}
		return ledger.NewBadgerPersister(db), nil
	case config.LedgerJSON, "":
		return ledger.NewFilePersister(cfg.Path), nil
	default:
		return nil, errors.New("unknown ledger backend: " + cfg.Backend)
	}
}
