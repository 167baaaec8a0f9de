// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/backend"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/notify"
)

// TestSetup checks every collaborator without mutating anything.
//
// # Description
//
// The backend is checked through backend.Checker (a model listing call),
// email through notify.Checker (SMTP handshake and auth, no message) and
// the repository through Pinger (ls-remote). Components lacking the check
// interface are reported as configured when they exist. Neither the
// working tree nor the ledger is touched.
//
// # Outputs
//
//   - SetupReport: Per-component result with human-readable details.
func (o *Orchestrator) TestSetup(ctx context.Context) SetupReport {
	report := SetupReport{Details: make(map[string]string)}

	switch {
	case o.analyzer == nil:
		report.Details["backend"] = errText(o.analyzerErr, "not configured")
	default:
		report.Details["backend_provider"] = o.analyzer.Provider()
		if checker, ok := o.analyzer.(backend.Checker); ok {
			if err := checker.Check(ctx); err != nil {
				report.Details["backend"] = err.Error()
				break
			}
		}
		report.BackendConfigured = true
		report.Details["backend"] = "reachable"
	}

	switch {
	case o.notifier == nil:
		report.Details["email"] = errText(o.notifierErr, "not configured")
	default:
		if checker, ok := o.notifier.(notify.Checker); ok {
			if err := checker.Check(ctx); err != nil {
				report.Details["email"] = err.Error()
				break
			}
		}
		report.EmailConfigured = true
		report.Details["email"] = "SMTP login succeeded"
	}

	if pinger, ok := o.repo.(Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			report.Details["repo"] = err.Error()
		} else {
			report.RepoAccessible = true
			report.Details["repo"] = "remote branch reachable"
		}
	} else {
		report.Details["repo"] = "repository accessor cannot be checked"
	}

	o.logger.Info("setup test finished",
		slog.Bool("backend_configured", report.BackendConfigured),
		slog.Bool("email_configured", report.EmailConfigured),
		slog.Bool("repo_accessible", report.RepoAccessible))
	return report
}

func errText(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
