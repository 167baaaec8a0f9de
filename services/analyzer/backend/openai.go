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
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// chatCompleter talks to any OpenAI-compatible chat completions API.
// OpenAI and Groq both use it; only the base URL differs.
type chatCompleter struct {
	client *openai.Client
	name   string
	mdl    string
}

func newChatCompleter(name, apiKey, model, baseURL string, opts Options) *chatCompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = opts.HTTPClient
	return &chatCompleter{
		client: openai.NewClientWithConfig(cfg),
		name:   name,
		mdl:    model,
	}
}

func (c *chatCompleter) provider() string { return c.name }
func (c *chatCompleter) model() string    { return c.mdl }

func (c *chatCompleter) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.mdl,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s API call failed: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *chatCompleter) check(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s list models: %w", c.name, err)
	}
	return nil
}

// NewOpenAI returns an analyzer backed by the OpenAI chat API.
// baseURL may be empty to use api.openai.com.
func NewOpenAI(apiKey, model, baseURL string, opts Options) (*FileAnalyzer, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required (OPENAI_API_KEY)")
	}
	opts = opts.withDefaults()
	return newFileAnalyzer(newChatCompleter("openai", apiKey, model, baseURL, opts), opts), nil
}

// NewGroq returns an analyzer backed by Groq's OpenAI-compatible API.
func NewGroq(apiKey, model, baseURL string, opts Options) (*FileAnalyzer, error) {
	if apiKey == "" {
		return nil, errors.New("groq: api key is required (GROQ_API_KEY)")
	}
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	opts = opts.withDefaults()
	return newFileAnalyzer(newChatCompleter("groq", apiKey, model, baseURL, opts), opts), nil
}
