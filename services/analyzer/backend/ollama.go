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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaBaseURL is the default local Ollama server.
const OllamaBaseURL = "http://localhost:11434"

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// ollamaCompleter calls a local Ollama server's generate endpoint.
type ollamaCompleter struct {
	httpClient *http.Client
	baseURL    string
	mdl        string
}

func (c *ollamaCompleter) provider() string { return "ollama" }
func (c *ollamaCompleter) model() string    { return c.mdl }

func (c *ollamaCompleter) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:   c.mdl,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"temperature": Temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("ollama error: status %d", resp.StatusCode)
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse ollama response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}
	return parsed.Response, nil
}

func (c *ollamaCompleter) check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama list models: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama list models: status %d", resp.StatusCode)
	}
	return nil
}

// NewOllama returns an analyzer backed by an Ollama server. No credential
// is needed.
func NewOllama(baseURL, model string, opts Options) *FileAnalyzer {
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	opts = opts.withDefaults()
	c := &ollamaCompleter{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		mdl:        model,
	}
	return newFileAnalyzer(c, opts)
}
