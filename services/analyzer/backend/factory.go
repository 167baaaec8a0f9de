// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/config"
)

// Providers lists the accepted provider names.
func Providers() []string {
	return []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGroq, config.ProviderOllama}
}

// New builds the analyzer selected by cfg.Provider.
//
// # Inputs
//
//   - cfg: Backend section of the configuration. Timeout and
//     RequestsPerSecond fill opts.Timeout and opts.Limiter when those are
//     unset.
//   - opts: Shared analyzer options (file size ceiling, logger, client).
//
// # Outputs
//
//   - *FileAnalyzer: Ready analyzer.
//   - error: ErrUnknownProvider for an unrecognised name, or a
//     configuration error when the provider's API key is missing.
func New(cfg config.BackendConfig, opts Options) (*FileAnalyzer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Timeout
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(cfg.RequestsPerSecond)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case config.ProviderOpenAI:
		key, err := reveal(cfg.OpenAI.APIKey, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewOpenAI(key, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, opts)

	case config.ProviderAnthropic:
		key, err := reveal(cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewAnthropic(key, cfg.Anthropic.Model, cfg.Anthropic.BaseURL, opts)

	case config.ProviderGroq:
		key, err := reveal(cfg.Groq.APIKey, "GROQ_API_KEY")
		if err != nil {
			return nil, err
		}
		return NewGroq(key, cfg.Groq.Model, cfg.Groq.BaseURL, opts)

	case config.ProviderOllama:
		return NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Model, opts), nil

	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownProvider, cfg.Provider, strings.Join(Providers(), ", "))
	}
}

func reveal(s *config.Secret, envName string) (string, error) {
	v, err := s.Reveal()
	if errors.Is(err, config.ErrNotConfigured) {
		return "", fmt.Errorf("%w: %s is not set", config.ErrNotConfigured, envName)
	}
	return v, err
}
