// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is read when present and no file is named.
	DefaultConfigFile = "config.yaml"

	// DefaultEnvFile is read when present and no file is named.
	DefaultEnvFile = ".env"
)

var validate = validator.New()

// LoadOptions names the files Load reads. Empty names fall back to the
// defaults, which may be absent; named files must exist.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

// Load builds the configuration.
//
// # Description
//
// Sources are applied in increasing precedence: DefaultConfig, the YAML
// file, then the process environment. The .env file only fills variables
// that are not already set in the environment.
//
// # Outputs
//
//   - *Config: Validated configuration.
//   - error: File, parse, or validation failure.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := loadYAML(&cfg, opts.ConfigFile); err != nil {
		return nil, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequireRepository checks the settings needed to contact the repository.
func (c *Config) RequireRepository() error {
	if strings.TrimSpace(c.Repository.URL) == "" {
		return errors.New("repository url is not set (REPO_URL)")
	}
	return nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

func loadYAML(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("REPO_URL", &cfg.Repository.URL)
	e.str("REPO_BRANCH", &cfg.Repository.Branch)
	e.str("REPO_LOCAL_PATH", &cfg.Repository.LocalPath)
	e.integer("COMMIT_WINDOW", &cfg.Repository.CommitWindow)

	if v, ok := e.get("AI_PROVIDER"); ok {
		cfg.Backend.Provider = strings.ToLower(v)
	}
	e.seconds("AI_TIMEOUT_SECONDS", &cfg.Backend.Timeout)
	e.float("AI_RPS", &cfg.Backend.RequestsPerSecond)
	e.integer("AI_CONCURRENCY", &cfg.Backend.Concurrency)

	e.secret("OPENAI_API_KEY", &cfg.Backend.OpenAI.APIKey)
	e.str("OPENAI_MODEL", &cfg.Backend.OpenAI.Model)
	e.str("OPENAI_BASE_URL", &cfg.Backend.OpenAI.BaseURL)
	e.secret("ANTHROPIC_API_KEY", &cfg.Backend.Anthropic.APIKey)
	e.str("ANTHROPIC_MODEL", &cfg.Backend.Anthropic.Model)
	e.str("ANTHROPIC_BASE_URL", &cfg.Backend.Anthropic.BaseURL)
	e.secret("GROQ_API_KEY", &cfg.Backend.Groq.APIKey)
	e.str("GROQ_MODEL", &cfg.Backend.Groq.Model)
	e.str("GROQ_BASE_URL", &cfg.Backend.Groq.BaseURL)
	e.str("OLLAMA_BASE_URL", &cfg.Backend.Ollama.BaseURL)
	e.str("OLLAMA_MODEL", &cfg.Backend.Ollama.Model)

	e.str("EMAIL_SENDER", &cfg.Email.Sender)
	e.secret("EMAIL_PASSWORD", &cfg.Email.Password)
	e.str("EMAIL_SMTP_SERVER", &cfg.Email.SMTPServer)
	e.integer("EMAIL_SMTP_PORT", &cfg.Email.SMTPPort)

	e.str("LEDGER_BACKEND", &cfg.Ledger.Backend)
	e.str("TRACKED_COMMITS_FILE", &cfg.Ledger.Path)
	e.str("LEDGER_BADGER_DIR", &cfg.Ledger.BadgerDir)

	e.int64("MAX_FILE_SIZE_BYTES", &cfg.Analysis.MaxFileSizeBytes)
	e.str("SENTINEL_FILE", &cfg.Analysis.SentinelFile)
	e.list("EXCLUDE_PATTERNS", &cfg.Analysis.Exclude)
	e.boolean("REDACT_SECRETS", &cfg.Analysis.RedactSecrets)

	e.str("LOG_LEVEL", &cfg.Logging.Level)
	e.str("LOG_FILE", &cfg.Logging.File)
	e.boolean("LOG_JSON", &cfg.Logging.JSON)

	e.str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	e.str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TracesExporter)
	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	e.str("PUSHGATEWAY_URL", &cfg.Telemetry.PushgatewayURL)

	return errors.Join(e.errs...)
}

// envReader applies variables and collects parse errors.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) secret(name string, dst **Secret) {
	if v, ok := e.get(name); ok {
		*dst = NewSecret(v)
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(name string, dst *int64) {
	if v, ok := e.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) float(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = b
	}
}

// seconds reads a whole number of seconds.
func (e *envReader) seconds(name string, dst *time.Duration) {
	var n int
	before := len(e.errs)
	e.integer(name, &n)
	if len(e.errs) == before && n != 0 {
		*dst = time.Duration(n) * time.Second
	}
}

// list reads a comma-separated list, dropping empty items.
func (e *envReader) list(name string, dst *[]string) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
