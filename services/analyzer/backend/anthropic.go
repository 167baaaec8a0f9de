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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIVersion = "2023-06-01"

	// AnthropicBaseURL is the default API root.
	AnthropicBaseURL = "https://api.anthropic.com"

	anthropicMaxTokens = 1024
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicCompleter calls the Messages API over plain HTTP.
type anthropicCompleter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	mdl        string
}

func (c *anthropicCompleter) provider() string { return "anthropic" }
func (c *anthropicCompleter) model() string    { return c.mdl }

func (c *anthropicCompleter) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")
	return req, nil
}

func (c *anthropicCompleter) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:       c.mdl,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   anthropicMaxTokens,
		Temperature: Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read anthropic response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("anthropic returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("parse anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic returned status %d", resp.StatusCode)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func (c *anthropicCompleter) check(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic list models: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anthropic list models: status %d", resp.StatusCode)
	}
	return nil
}

// NewAnthropic returns an analyzer backed by the Anthropic Messages API.
// baseURL may be empty to use api.anthropic.com.
func NewAnthropic(apiKey, model, baseURL string, opts Options) (*FileAnalyzer, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required (ANTHROPIC_API_KEY)")
	}
	if baseURL == "" {
		baseURL = AnthropicBaseURL
	}
	opts = opts.withDefaults()
	c := &anthropicCompleter{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		mdl:        model,
	}
	return newFileAnalyzer(c, opts), nil
}
