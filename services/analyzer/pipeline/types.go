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
	"time"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

// Repository is the source-control accessor consumed by the orchestrator.
type Repository interface {
	// CloneOrUpdate brings the working tree up to date with the remote.
	CloneOrUpdate(ctx context.Context) error

	// CommitsSince lists commits newer than since, newest first. An empty
	// since means the most recent window of commits.
	CommitsSince(ctx context.Context, since string) ([]datatypes.CommitRecord, error)

	// Path is the working tree root on disk.
	Path() string
}

// Pinger is implemented by repositories that can check remote reachability
// without touching the working tree.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RunSummary reports what one run did.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`

	CommitsAnalyzed int `json:"commits_analyzed"`

	// IssuesFound counts files with findings, summed over commits.
	IssuesFound int `json:"issues_found"`

	// EmailsSent counts notifications delivered successfully.
	EmailsSent int `json:"emails_sent"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Failed reports whether the run ended in failure.
func (s RunSummary) Failed() bool { return s.Status == StatusFailed }

// SetupReport is the outcome of a non-mutating configuration check.
type SetupReport struct {
	BackendConfigured bool              `json:"backend_configured"`
	EmailConfigured   bool              `json:"email_configured"`
	RepoAccessible    bool              `json:"repo_accessible"`
	Details           map[string]string `json:"details"`
}

// OK reports whether every component passed.
func (r SetupReport) OK() bool {
	return r.BackendConfigured && r.EmailConfigured && r.RepoAccessible
}
