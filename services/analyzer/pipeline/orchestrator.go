// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline drives incremental commit analysis end to end.
//
// # Description
//
// One run resolves the resume point from the ledger, lists newer commits,
// and for each commit (oldest first) picks candidate files, analyzes them,
// groups findings per folder, notifies the author once per folder and
// records the commit. Recording happens whatever the notification outcome,
// so a recorded commit is never analyzed or notified again.
//
// Failures are contained at the smallest unit: a file, then a commit, then
// the run. Only repository access failures, cancellation and panics that
// escape the commit loop fail the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/aggregate"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/backend"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/extract"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/ledger"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/notify"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/telemetry"
)

var tracer = otel.Tracer("codeanalyzer.pipeline")

// MaxConcurrency caps per-commit file concurrency.
const MaxConcurrency = 16

// ledgerWriteTimeout bounds recording a commit once its notifications have
// been attempted. The write does not inherit run cancellation.
const ledgerWriteTimeout = 10 * time.Second

// Dependencies wires an Orchestrator.
type Dependencies struct {
	Repo    Repository
	Tracker *ledger.Tracker

	// Analyzer may be nil when the backend could not be built; AnalyzerErr
	// then says why. Run fails fast and TestSetup reports it.
	Analyzer    backend.Analyzer
	AnalyzerErr error

	// Notifier may be nil when email is not configured; NotifierErr then
	// says why. Commits are still analyzed and recorded.
	Notifier    notify.Notifier
	NotifierErr error

	Filter  extract.Filter
	Metrics *telemetry.RunMetrics

	// Branch is shown in notifications.
	Branch string

	// Concurrency is the number of files of one commit analyzed at once.
	// Values below 1 mean sequential.
	Concurrency int

	Logger *slog.Logger

	// Now is swapped in tests.
	Now func() time.Time
}

// Orchestrator runs the analysis pipeline.
//
// # Thread Safety
//
// Run, TestSetup and Reset must not be called concurrently; the ledger is
// the only shared state and runs are expected to be serialized.
type Orchestrator struct {
	repo        Repository
	tracker     *ledger.Tracker
	analyzer    backend.Analyzer
	analyzerErr error
	notifier    notify.Notifier
	notifierErr error
	filter      extract.Filter
	metrics     *telemetry.RunMetrics
	branch      string
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// New validates deps and builds an Orchestrator.
func New(deps Dependencies) (*Orchestrator, error) {
	if deps.Repo == nil {
		return nil, errors.New("pipeline: repository is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("pipeline: tracker is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	if deps.Concurrency > MaxConcurrency {
		deps.Concurrency = MaxConcurrency
	}
	if deps.Filter.Logger == nil {
		deps.Filter.Logger = deps.Logger
	}

	return &Orchestrator{
		repo:        deps.Repo,
		tracker:     deps.Tracker,
		analyzer:    deps.Analyzer,
		analyzerErr: deps.AnalyzerErr,
		notifier:    deps.Notifier,
		notifierErr: deps.NotifierErr,
		filter:      deps.Filter,
		metrics:     deps.Metrics,
		branch:      deps.Branch,
		concurrency: deps.Concurrency,
		logger:      deps.Logger.With(slog.String("component", "pipeline")),
		now:         deps.Now,
	}, nil
}

// commitResult is what one processed commit adds to the run summary.
type commitResult struct {
	issues int
	sent   int
}

// Run executes one pipeline run.
//
// # Description
//
//  1. Clone or update the repository. Failure ends the run as failed with
//     zero counters.
//  2. List commits after the last recorded one and reverse them to oldest
//     first.
//  3. Process each commit not yet recorded. A commit that fails or panics
//     is logged and skipped; the run continues.
//  4. Cancellation of ctx stops the loop and fails the run, keeping the
//     counters accumulated so far.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//
// # Outputs
//
//   - RunSummary: Always returned; Status tells success from failure.
func (o *Orchestrator) Run(ctx context.Context) (summary RunSummary) {
	start := o.now()
	summary = RunSummary{
		RunID:     uuid.NewString(),
		Timestamp: start,
		Status:    StatusSuccess,
	}
	logger := o.logger.With(slog.String("run_id", summary.RunID))

	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	span.SetAttributes(attribute.String("run.id", summary.RunID), attribute.String("run.branch", o.branch))

	defer func() {
		if r := recover(); r != nil {
			summary.Status = StatusFailed
			summary.Error = fmt.Sprintf("unexpected panic: %v", r)
			logger.Error("run panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
		summary.Duration = o.now().Sub(start)

		span.SetAttributes(
			attribute.Int("run.commits", summary.CommitsAnalyzed),
			attribute.Int("run.issues", summary.IssuesFound),
			attribute.Int("run.emails", summary.EmailsSent),
		)
		if summary.Failed() {
			span.SetStatus(codes.Error, summary.Error)
		}
		span.End()

		o.metrics.ObserveRun(!summary.Failed(), summary.Duration, o.now())
		logger.Info("run finished",
			slog.String("status", string(summary.Status)),
			slog.Int("commits_analyzed", summary.CommitsAnalyzed),
			slog.Int("issues_found", summary.IssuesFound),
			slog.Int("emails_sent", summary.EmailsSent),
			slog.Duration("duration", summary.Duration))
	}()

	fail := func(err error) RunSummary {
		summary.Status = StatusFailed
		summary.Error = err.Error()
		span.RecordError(err)
		logger.Error("run failed", slog.String("error", err.Error()))
		return summary
	}

	if o.analyzer == nil {
		err := o.analyzerErr
		if err == nil {
			err = errors.New("no analyzer")
		}
		return fail(fmt.Errorf("backend not configured: %w", err))
	}

	logger.Info("updating repository")
	if err := o.repo.CloneOrUpdate(ctx); err != nil {
		return fail(fmt.Errorf("repository access failed: %w", err))
	}

	since, _ := o.tracker.LastAnalyzed()
	commits, err := o.repo.CommitsSince(ctx, since)
	if err != nil {
		if since != "" {
			err = fmt.Errorf("%w (if %s was rewritten out of %s, run --reset-tracking)", err, since, o.branch)
		}
		return fail(fmt.Errorf("listing commits: %w", err))
	}
	if len(commits) == 0 {
		logger.Info("no new commits to analyze", slog.String("since", since))
		return summary
	}

	slices.Reverse(commits)
	logger.Info("analyzing commits", slog.Int("count", len(commits)), slog.String("since", since))

	for _, commit := range commits {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("run cancelled: %w", err))
		}
		if o.tracker.IsAnalyzed(commit.ID) {
			logger.Debug("commit already analyzed", slog.String("commit", commit.ShortID()))
			continue
		}

		res, err := o.processCommit(ctx, logger, commit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(fmt.Errorf("run cancelled: %w", ctxErr))
			}
			logger.Error("commit processing failed",
				slog.String("commit", commit.ShortID()),
				slog.String("error", err.Error()))
			continue
		}

		summary.CommitsAnalyzed++
		summary.IssuesFound += res.issues
		summary.EmailsSent += res.sent
	}

	return summary
}

// processCommit analyzes, notifies and records one commit.
//
// The commit is recorded unless analysis was interrupted by cancellation
// or the commit panicked before reaching the ledger.
func (o *Orchestrator) processCommit(ctx context.Context, runLogger *slog.Logger, commit datatypes.CommitRecord) (res commitResult, err error) {
	logger := runLogger.With(slog.String("commit", commit.ShortID()))

	ctx, span := tracer.Start(ctx, "Orchestrator.processCommit")
	span.SetAttributes(attribute.String("commit.id", commit.ID))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("commit panicked: %v", r)
			logger.Error("commit panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	candidates := o.filter.Candidates(commit.ModifiedFiles)
	logger.Info("analyzing commit",
		slog.String("subject", commit.Subject()),
		slog.Int("modified", len(commit.ModifiedFiles)),
		slog.Int("candidates", len(candidates)))

	reports := o.analyzeAll(ctx, logger, candidates)
	if err := ctx.Err(); err != nil {
		return commitResult{}, err
	}

	var escalated []datatypes.ErrorReport
	for i, c := range candidates {
		if er, ok := aggregate.Escalate(c.Path, reports[i]); ok {
			logger.Info("issues found",
				slog.String("file", c.Path),
				slog.Int("findings", len(er.Analysis.Errors)))
			escalated = append(escalated, er)
		}
	}
	res.issues = len(escalated)

	for _, batch := range aggregate.ByFolder(escalated) {
		if o.notifyBatch(ctx, logger, commit, batch) {
			res.sent++
		}
	}

	// Authors may already have mail for this commit, so an interrupt must
	// not stop it reaching the ledger.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()

	summary := ledger.AnalysisSummary{FilesAnalyzed: len(commit.ModifiedFiles), Issues: res.issues}
	if err := o.tracker.MarkAnalyzed(recordCtx, commit.ID, summary, commit); err != nil {
		logger.Error("ledger save failed, commit kept in memory only", slog.String("error", err.Error()))
	}
	o.metrics.ObserveCommit(res.issues)

	span.SetAttributes(
		attribute.Int("commit.files", len(commit.ModifiedFiles)),
		attribute.Int("commit.candidates", len(candidates)),
		attribute.Int("commit.issues", res.issues),
		attribute.Int("commit.findings", aggregate.CountFindings(escalated)),
	)
	return res, nil
}

// analyzeAll runs the analyzer over candidates and returns reports in
// candidate order.
func (o *Orchestrator) analyzeAll(ctx context.Context, logger *slog.Logger, candidates []extract.Candidate) []datatypes.FileReport {
	reports := make([]datatypes.FileReport, len(candidates))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			reports[i] = o.analyzeFile(ctx, logger, c)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

// analyzeFile analyzes one candidate and never panics.
func (o *Orchestrator) analyzeFile(ctx context.Context, logger *slog.Logger, c extract.Candidate) (report datatypes.FileReport) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("file analysis panicked", slog.String("file", c.Path), slog.Any("panic", r))
			report = datatypes.FileReport{Error: fmt.Sprintf("analysis panicked: %v", r)}
		}
		report.FilePath = c.Path
		o.metrics.ObserveFile(o.analyzer.Provider(), report)
	}()

	full := filepath.Join(o.repo.Path(), filepath.FromSlash(c.Path))
	report = o.analyzer.Analyze(ctx, full)
	if report.Failed() {
		logger.Warn("file analysis failed", slog.String("file", c.Path), slog.String("error", report.Error))
	}
	return report
}

// notifyBatch sends one folder batch and reports whether it was delivered.
func (o *Orchestrator) notifyBatch(ctx context.Context, logger *slog.Logger, commit datatypes.CommitRecord, batch datatypes.FolderBatch) (sent bool) {
	logger = logger.With(slog.String("folder", batch.Folder), slog.String("recipient", commit.AuthorEmail))

	if o.notifier == nil {
		reason := "not configured"
		if o.notifierErr != nil {
			reason = o.notifierErr.Error()
		}
		logger.Warn("notification skipped", slog.String("reason", reason))
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("notification panicked", slog.Any("panic", r))
			o.metrics.ObserveNotification(fmt.Errorf("panic: %v", r))
			sent = false
		}
	}()

	err := o.notifier.Notify(ctx, notify.Notification{
		Recipient:  commit.AuthorEmail,
		AuthorName: commit.AuthorName,
		Branch:     o.branch,
		Folder:     batch.Folder,
		CommitID:   commit.ID,
		Files:      batch.Analyses(),
	})
	o.metrics.ObserveNotification(err)
	if err != nil {
		logger.Error("notification failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Reset clears the ledger so the next run starts from the commit window.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.tracker.Reset(ctx); err != nil {
		return fmt.Errorf("resetting ledger: %w", err)
	}
	o.logger.Info("commit tracking reset")
	return nil
}
