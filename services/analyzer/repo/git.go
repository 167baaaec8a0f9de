// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repo provides access to the tracked git repository.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/CodeAnalyzer/pkg/validation"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

var tracer = otel.Tracer("codeanalyzer.repo")

const (
	// DefaultWindow is the number of commits read when there is no resume point.
	DefaultWindow = 100

	// DefaultCloneTimeout bounds clone and update operations.
	DefaultCloneTimeout = 300 * time.Second

	// DefaultCommandTimeout bounds every other git invocation.
	DefaultCommandTimeout = 60 * time.Second
)

var (
	// ErrNoURL is returned when no repository URL is configured.
	ErrNoURL = errors.New("repository URL not configured")

	// ErrNotRepository is returned when the local path exists but is not a git work tree.
	ErrNotRepository = errors.New("local path is not a git repository")
)

// Config configures a Git accessor.
type Config struct {
	URL       string
	Branch    string
	LocalPath string

	// Window caps the commit list when there is no resume point.
	Window int

	CloneTimeout   time.Duration
	CommandTimeout time.Duration

	Logger *slog.Logger
}

// Git clones, updates and reads one branch of a remote repository through the
// git command line.
//
// # Thread Safety
//
// Read methods are safe for concurrent use. CloneOrUpdate and Cleanup must
// not run concurrently with anything else.
type Git struct {
	url       string
	branch    string
	localPath string
	window    int

	cloneTimeout   time.Duration
	commandTimeout time.Duration

	logger *slog.Logger
}

// NewGit creates a Git accessor.
//
// # Description
//
// Resolves LocalPath to an absolute path and fills zero values with the
// package defaults. No git command is executed.
//
// # Inputs
//
//   - cfg: Accessor configuration. Branch and LocalPath are required.
//
// # Outputs
//
//   - *Git: Ready-to-use accessor.
//   - error: Non-nil if Branch or LocalPath is empty, the branch name is
//     not a safe git argument, or the path cannot be resolved.
func NewGit(cfg Config) (*Git, error) {
	if cfg.Branch == "" {
		return nil, errors.New("branch is required")
	}
	branch, err := validation.SanitizeBranch(cfg.Branch)
	if err != nil {
		return nil, err
	}
	if cfg.LocalPath == "" {
		return nil, errors.New("local path is required")
	}
	abs, err := filepath.Abs(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("resolving local path: %w", err)
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.CloneTimeout <= 0 {
		cfg.CloneTimeout = DefaultCloneTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Git{
		url:            cfg.URL,
		branch:         branch,
		localPath:      abs,
		window:         cfg.Window,
		cloneTimeout:   cfg.CloneTimeout,
		commandTimeout: cfg.CommandTimeout,
		logger:         cfg.Logger.With(slog.String("component", "repo")),
	}, nil
}

// Path returns the absolute working tree path.
func (g *Git) Path() string { return g.localPath }

// Branch returns the tracked branch.
func (g *Git) Branch() string { return g.branch }

// CloneOrUpdate makes the working tree match the remote branch.
//
// # Description
//
// Clones the branch when the local path does not exist. Otherwise fetches
// the branch from origin and force-checks it out at the fetched head, so
// local edits never block an update.
//
// # Inputs
//
//   - ctx: Context for cancellation. The clone timeout is applied on top.
//
// # Outputs
//
//   - error: Non-nil if git failed or the path is not a repository.
func (g *Git) CloneOrUpdate(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "repo.CloneOrUpdate")
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, g.cloneTimeout)
	defer cancel()

	if _, statErr := os.Stat(g.localPath); statErr == nil {
		span.SetAttributes(attribute.String("repo.action", "update"))
		if _, err := g.run(ctx, g.localPath, "rev-parse", "--git-dir"); err != nil {
			return fmt.Errorf("%w: %s", ErrNotRepository, g.localPath)
		}

		g.logger.Info("updating repository", slog.String("path", g.localPath), slog.String("branch", g.branch))
		if _, err := g.run(ctx, g.localPath, "fetch", "origin", g.branch); err != nil {
			return err
		}
		if _, err := g.run(ctx, g.localPath, "checkout", "--force", "-B", g.branch, "FETCH_HEAD"); err != nil {
			return err
		}
		return nil
	}

	if g.url == "" {
		return ErrNoURL
	}

	span.SetAttributes(attribute.String("repo.action", "clone"))
	g.logger.Info("cloning repository", slog.String("url", redactURL(g.url)), slog.String("branch", g.branch))

	if err := os.MkdirAll(filepath.Dir(g.localPath), 0750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if _, err := g.run(ctx, "", "clone", "--branch", g.branch, g.url, g.localPath); err != nil {
		return err
	}
	return nil
}

// CommitsSince lists commits on the branch newer than since.
//
// # Description
//
// Returns commits in git's native newest-first order. With an empty since
// the most recent Window commits are returned. Merge commits are listed
// without modified files.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - since: Commit hash to resume after, or "".
//
// # Outputs
//
//   - []datatypes.CommitRecord: Commits, newest first.
//   - error: Non-nil if git log failed, e.g. because since is unknown.
func (g *Git) CommitsSince(ctx context.Context, since string) (commits []datatypes.CommitRecord, err error) {
	ctx, span := tracer.Start(ctx, "repo.CommitsSince")
	defer func() {
		span.SetAttributes(attribute.Int("repo.commits", len(commits)))
		endSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, g.commandTimeout)
	defer cancel()

	args := []string{"log", "--no-renames", "--name-only", "--format=" + logFormat}
	if since != "" {
		if err := validation.ValidateCommitID(since); err != nil {
			return nil, fmt.Errorf("resume point: %w", err)
		}
		args = append(args, since+".."+g.branch)
	} else {
		args = append(args, "-n", strconv.Itoa(g.window), g.branch)
	}
	args = append(args, "--")

	out, err := g.run(ctx, g.localPath, args...)
	if err != nil {
		return nil, err
	}

	commits, err = parseLog(out)
	if err != nil {
		return nil, err
	}
	g.logger.Info("found commits", slog.Int("count", len(commits)), slog.String("since", since))
	return commits, nil
}

// Ping checks that the remote branch is reachable without touching the
// working tree.
func (g *Git) Ping(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "repo.Ping")
	defer func() { endSpan(span, err) }()

	if g.url == "" {
		return ErrNoURL
	}

	ctx, cancel := context.WithTimeout(ctx, g.commandTimeout)
	defer cancel()

	out, err := g.run(ctx, "", "ls-remote", "--heads", g.url, g.branch)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("branch %q not found on remote", g.branch)
	}
	return nil
}

// Cleanup removes the working tree.
func (g *Git) Cleanup() error {
	if err := os.RemoveAll(g.localPath); err != nil {
		return fmt.Errorf("removing %s: %w", g.localPath, err)
	}
	g.logger.Info("repository cleaned up", slog.String("path", g.localPath))
	return nil
}

// run executes git in dir and returns stdout.
func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{"-c", "core.quotePath=false"}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %s: %w", args[0], ctx.Err())
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, redactURL(strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
