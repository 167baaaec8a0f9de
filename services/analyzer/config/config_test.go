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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "dev", cfg.Repository.Branch)
	assert.Equal(t, "./repo_clone", cfg.Repository.LocalPath)
	assert.Equal(t, 100, cfg.Repository.CommitWindow)
	assert.Equal(t, ProviderOpenAI, cfg.Backend.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Backend.OpenAI.Model)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Backend.Anthropic.Model)
	assert.Equal(t, "mixtral-8x7b-32768", cfg.Backend.Groq.Model)
	assert.Equal(t, "mistral", cfg.Backend.Ollama.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Backend.Ollama.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTPServer)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, "./data/analyzed_commits.json", cfg.Ledger.Path)
	assert.Equal(t, int64(50000), cfg.Analysis.MaxFileSizeBytes)
	assert.Equal(t, "qn.txt", cfg.Analysis.SentinelFile)
	assert.True(t, cfg.Analysis.RedactSecrets)
	assert.Equal(t, "./logs/code_analyzer.log", cfg.Logging.File)

	assert.Error(t, cfg.RequireRepository())
	assert.False(t, cfg.Email.Configured())
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := DefaultConfig()
	err := applyEnv(&cfg, mapLookup(map[string]string{
		"REPO_URL":            "https://example.com/org/repo.git",
		"REPO_BRANCH":         "main",
		"AI_PROVIDER":         "Anthropic",
		"ANTHROPIC_API_KEY":   "sk-ant-test",
		"AI_TIMEOUT_SECONDS":  "15",
		"MAX_FILE_SIZE_BYTES": "1024",
		"EMAIL_SMTP_PORT":     "2525",
		"EMAIL_SENDER":        "bot@example.com",
		"EMAIL_PASSWORD":      "hunter2",
		"EXCLUDE_PATTERNS":    "vendor/**, **/*_gen.go,,",
		"LEDGER_BACKEND":      "badger",
		"OPENAI_MODEL":        "   ",
		"REDACT_SECRETS":      "false",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.com/org/repo.git", cfg.Repository.URL)
	assert.Equal(t, "main", cfg.Repository.Branch)
	assert.Equal(t, ProviderAnthropic, cfg.Backend.Provider)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, int64(1024), cfg.Analysis.MaxFileSizeBytes)
	assert.Equal(t, 2525, cfg.Email.SMTPPort)
	assert.Equal(t, []string{"vendor/**", "**/*_gen.go"}, cfg.Analysis.Exclude)
	assert.Equal(t, LedgerBadger, cfg.Ledger.Backend)
	assert.False(t, cfg.Analysis.RedactSecrets)
	assert.Equal(t, "gpt-4o-mini", cfg.Backend.OpenAI.Model, "blank values are ignored")

	key, err := cfg.Backend.Active().APIKey.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", key)
	assert.True(t, cfg.Email.Configured())
	assert.NoError(t, cfg.RequireRepository())
}

func TestApplyEnv_BadNumbers(t *testing.T) {
	cfg := DefaultConfig()
	err := applyEnv(&cfg, mapLookup(map[string]string{
		"EMAIL_SMTP_PORT":    "five-eight-seven",
		"AI_TIMEOUT_SECONDS": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_SMTP_PORT")
	assert.Contains(t, err.Error(), "AI_TIMEOUT_SECONDS")
	assert.Equal(t, 587, cfg.Email.SMTPPort)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Backend.Provider = "bard" }},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }},
		{"bad port", func(c *Config) { c.Email.SMTPPort = 70000 }},
		{"negative size", func(c *Config) { c.Analysis.MaxFileSizeBytes = -1 }},
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "sqlite" }},
		{"badger without dir", func(c *Config) { c.Ledger.Backend = LedgerBadger; c.Ledger.BadgerDir = "" }},
		{"unknown exporter", func(c *Config) { c.Telemetry.TracesExporter = "zipkin" }},
		{"sender not an address", func(c *Config) { c.Email.Sender = "not-an-email" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
repository:
  url: git@example.com:org/repo.git
  branch: release
backend:
  provider: ollama
  timeout: 90s
  ollama:
    model: codellama
analysis:
  exclude: ["docs/**"]
`), 0600))

	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("REPO_BRANCH=hotfix\n"), 0600))
	t.Setenv("REPO_BRANCH", "")
	require.NoError(t, os.Unsetenv("REPO_BRANCH"))

	cfg, err := Load(LoadOptions{ConfigFile: cfgPath, EnvFile: envPath})
	require.NoError(t, err)

	assert.Equal(t, "git@example.com:org/repo.git", cfg.Repository.URL)
	assert.Equal(t, "hotfix", cfg.Repository.Branch, "env wins over yaml")
	assert.Equal(t, ProviderOllama, cfg.Backend.Provider)
	assert.Equal(t, 90*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "codellama", cfg.Backend.Active().Model)
	assert.Equal(t, "http://localhost:11434", cfg.Backend.Active().BaseURL)
	assert.Equal(t, []string{"docs/**"}, cfg.Analysis.Exclude)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, err)
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := NewSecret("top-secret")
	assert.True(t, s.Present())
	assert.Equal(t, "[REDACTED]", s.String())
	assert.NotContains(t, fmt.Sprintf("%v", s), "top-secret")

	out, err := yaml.Marshal(ProviderConfig{Model: "m", APIKey: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "top-secret")

	v, err := s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "top-secret", v)

	var empty *Secret
	assert.False(t, empty.Present())
	_, err = empty.Reveal()
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, NewSecret(""))
}

func TestSecret_FromYAML(t *testing.T) {
	var p ProviderConfig
	require.NoError(t, yaml.Unmarshal([]byte("model: x\napi_key: from-file\n"), &p))
	v, err := p.APIKey.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)
}
