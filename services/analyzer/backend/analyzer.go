// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend analyzes one source file with a language model.
//
// # Description
//
// Every provider shares the same pipeline, implemented by FileAnalyzer:
// check the extension, read the file under a size ceiling, render the
// prompt, wait for the rate limiter, call the provider under a timeout,
// and parse the answer. Providers only differ in how they send a prompt
// and get text back; that part is the completer interface.
//
// Analyze never returns an error. Any failure is reported in
// FileReport.Error so one bad file cannot stop a commit.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/policy"
)

var tracer = otel.Tracer("codeanalyzer.backend")

// Sentinel errors surfaced in FileReport.Error.
var (
	ErrUnknownProvider     = errors.New("unknown backend provider")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrFileNotFound        = errors.New("file not found")
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyFile           = errors.New("file is empty")
	ErrEmptyResponse       = errors.New("empty response from backend")
)

// Analyzer produces a FileReport for one file.
type Analyzer interface {
	// Provider returns the provider name, e.g. "openai".
	Provider() string

	// Analyze never fails; failures are reported in FileReport.Error.
	Analyze(ctx context.Context, path string) datatypes.FileReport
}

// Checker is implemented by analyzers that can verify their provider is
// reachable without analyzing anything.
type Checker interface {
	Check(ctx context.Context) error
}

// completer is the provider-specific part of an analyzer.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
	check(ctx context.Context) error
	provider() string
	model() string
}

// Options tunes a FileAnalyzer.
type Options struct {
	// MaxFileSize is the largest file, in bytes, that is sent.
	MaxFileSize int64

	// Timeout bounds a single provider call.
	Timeout time.Duration

	// Limiter throttles provider calls. Nil means unlimited.
	Limiter *rate.Limiter

	// HTTPClient is used by every provider. Nil builds one with Timeout.
	HTTPClient *http.Client

	// Redactor scrubs credentials from file content before the prompt is
	// rendered. Nil sends content unchanged.
	Redactor Redactor

	Logger *slog.Logger
}

// DefaultOptions returns a 50000-byte ceiling and a 60s timeout.
func DefaultOptions() Options {
	return Options{
		MaxFileSize: 50000,
		Timeout:     60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = d.MaxFileSize
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// NewLimiter returns a limiter allowing rps calls per second, or nil when
// rps is zero or negative.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Redactor replaces credentials in source text. policy.Engine implements it.
type Redactor interface {
	Redact(content string) (string, []policy.Finding)
}

// FileAnalyzer implements Analyzer on top of a completer.
//
// # Thread Safety
//
// FileAnalyzer is safe for concurrent use.
type FileAnalyzer struct {
	c      completer
	opts   Options
	logger *slog.Logger
}

func newFileAnalyzer(c completer, opts Options) *FileAnalyzer {
	return &FileAnalyzer{
		c:      c,
		opts:   opts,
		logger: opts.Logger.With(slog.String("provider", c.provider()), slog.String("model", c.model())),
	}
}

// Provider returns the provider name.
func (a *FileAnalyzer) Provider() string {
	return a.c.provider()
}

// Model returns the model name.
func (a *FileAnalyzer) Model() string {
	return a.c.model()
}

// Check verifies the provider answers a cheap, read-only request.
func (a *FileAnalyzer) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	return a.c.check(ctx)
}

// Analyze reads path and asks the provider to review it.
//
// # Inputs
//
//   - ctx: Cancels the provider call.
//   - path: OS path of the file inside the working tree.
//
// # Outputs
//
//   - datatypes.FileReport: FilePath is always path. On failure only
//     FilePath and Error are set.
func (a *FileAnalyzer) Analyze(ctx context.Context, path string) datatypes.FileReport {
	ctx, span := tracer.Start(ctx, "FileAnalyzer.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("analyzer.provider", a.c.provider()),
		attribute.String("analyzer.file", path),
	)

	fail := func(err error) datatypes.FileReport {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warn("file analysis failed", slog.String("file", path), slog.String("error", err.Error()))
		return datatypes.FileReport{FilePath: path, Error: err.Error()}
	}

	language, ok := LanguageFor(path)
	if !ok {
		return fail(fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path))
	}

	code, err := readSource(path, a.opts.MaxFileSize)
	if err != nil {
		return fail(err)
	}
	if a.opts.Redactor != nil {
		var redactions []policy.Finding
		code, redactions = a.opts.Redactor.Redact(code)
		if len(redactions) > 0 {
			span.SetAttributes(attribute.Int("analyzer.redactions", len(redactions)))
			a.logger.Warn("credentials redacted before upload",
				slog.String("file", path),
				slog.Int("count", len(redactions)))
		}
	}

	prompt, err := RenderPrompt(language, code, path)
	if err != nil {
		return fail(fmt.Errorf("render prompt: %w", err))
	}

	if a.opts.Limiter != nil {
		if err := a.opts.Limiter.Wait(ctx); err != nil {
			return fail(fmt.Errorf("rate limiter: %w", err))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.c.complete(callCtx, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("backend timed out after %s: %w", a.opts.Timeout, err)
		}
		return fail(err)
	}
	if strings.TrimSpace(raw) == "" {
		return fail(ErrEmptyResponse)
	}

	report := ParseResponse(raw)
	report.FilePath = path
	report.Language = language

	span.SetAttributes(
		attribute.Bool("analyzer.has_errors", report.HasErrors),
		attribute.Int("analyzer.findings", len(report.Errors)),
	)
	a.logger.Info("file analyzed",
		slog.String("file", path),
		slog.Bool("has_errors", report.HasErrors),
		slog.Int("findings", len(report.Errors)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return report
}

// readSource reads a UTF-8 source file, dropping invalid byte sequences.
func readSource(path string, maxSize int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, info.Size(), maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
