// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the analyzer's settings from defaults, an optional
// YAML file, a .env file, and environment variables, in that order.
package config

import (
	"time"
)

// Provider names accepted by backend.provider / AI_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGroq      = "groq"
	ProviderOllama    = "ollama"
)

// Ledger backends accepted by ledger.backend / LEDGER_BACKEND.
const (
	LedgerJSON   = "json"
	LedgerBadger = "badger"
)

// Trace exporters accepted by telemetry.traces_exporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config is the complete analyzer configuration.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Backend    BackendConfig    `yaml:"backend"`
	Email      EmailConfig      `yaml:"email"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// RepositoryConfig locates the watched repository.
type RepositoryConfig struct {
	URL       string `yaml:"url"`
	Branch    string `yaml:"branch" validate:"required"`
	LocalPath string `yaml:"local_path" validate:"required"`

	// CommitWindow bounds the first run, when no resume point exists.
	CommitWindow int `yaml:"commit_window" validate:"gt=0"`

	// CloneTimeout bounds clone, fetch, and ls-remote.
	CloneTimeout time.Duration `yaml:"clone_timeout" validate:"gt=0"`
}

// ProviderConfig holds the settings of one backend provider.
type ProviderConfig struct {
	Model   string  `yaml:"model"`
	BaseURL string  `yaml:"base_url" validate:"omitempty,url"`
	APIKey  *Secret `yaml:"api_key,omitempty"`
}

// BackendConfig selects and tunes the analysis backend.
type BackendConfig struct {
	Provider string `yaml:"provider" validate:"oneof=openai anthropic groq ollama"`

	// Timeout bounds a single backend call.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// RequestsPerSecond throttles backend calls. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	// Concurrency is the number of files of one commit analyzed at once.
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=16"`

	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Groq      ProviderConfig `yaml:"groq"`
	Ollama    ProviderConfig `yaml:"ollama"`
}

// Active returns the settings of the selected provider.
func (b BackendConfig) Active() ProviderConfig {
	switch b.Provider {
	case ProviderAnthropic:
		return b.Anthropic
	case ProviderGroq:
		return b.Groq
	case ProviderOllama:
		return b.Ollama
	default:
		return b.OpenAI
	}
}

// EmailConfig configures the SMTP notification sender.
type EmailConfig struct {
	Sender     string  `yaml:"sender" validate:"omitempty,email"`
	Password   *Secret `yaml:"password,omitempty"`
	SMTPServer string  `yaml:"smtp_server" validate:"required"`
	SMTPPort   int     `yaml:"smtp_port" validate:"min=1,max=65535"`
}

// Configured reports whether a sender and password are present.
func (e EmailConfig) Configured() bool {
	return e.Sender != "" && e.Password.Present()
}

// LedgerConfig selects where the tracking ledger lives.
type LedgerConfig struct {
	Backend string `yaml:"backend" validate:"oneof=json badger"`

	// Path is the JSON file (json backend).
	Path string `yaml:"path" validate:"required"`

	// BadgerDir is the database directory (badger backend).
	BadgerDir string `yaml:"badger_dir" validate:"required_if=Backend badger"`
}

// AnalysisConfig controls which files are analyzed.
type AnalysisConfig struct {
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" validate:"gt=0"`

	// SentinelFile names the non-code marker file that is never analyzed.
	SentinelFile string `yaml:"sentinel_file"`

	// Exclude holds doublestar glob patterns matched against
	// repository-relative paths.
	Exclude []string `yaml:"exclude"`

	// RedactSecrets replaces credentials found in file content before the
	// content is sent to the backend.
	RedactSecrets bool `yaml:"redact_secrets"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig configures tracing and run metrics.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TracesExporter string `yaml:"traces_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`

	// PushgatewayURL receives run metrics at the end of a run when set.
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Repository: RepositoryConfig{
			Branch:       "dev",
			LocalPath:    "./repo_clone",
			CommitWindow: 100,
			CloneTimeout: 300 * time.Second,
		},
		Backend: BackendConfig{
			Provider:    ProviderOpenAI,
			Timeout:     60 * time.Second,
			Concurrency: 1,
			OpenAI:      ProviderConfig{Model: "gpt-4o-mini"},
			Anthropic:   ProviderConfig{Model: "claude-3-5-sonnet-20241022"},
			Groq:        ProviderConfig{Model: "mixtral-8x7b-32768"},
			Ollama:      ProviderConfig{Model: "mistral", BaseURL: "http://localhost:11434"},
		},
		Email: EmailConfig{
			SMTPServer: "smtp.gmail.com",
			SMTPPort:   587,
		},
		Ledger: LedgerConfig{
			Backend:   LedgerJSON,
			Path:      "./data/analyzed_commits.json",
			BadgerDir: "./data/ledger",
		},
		Analysis: AnalysisConfig{
			MaxFileSizeBytes: 50000,
			SentinelFile:     "qn.txt",
			RedactSecrets:    true,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			File:  "./logs/code_analyzer.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "codeanalyzer",
			TracesExporter: ExporterNone,
		},
	}
}
