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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanReport = `{"has_errors": false, "severity": "none", "errors": [], "summary": "looks fine"}`

func TestOpenAI_ChatCompletion(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  "gpt-4o-mini",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": cleanReport},
				}},
			})
		case "/v1/models":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object": "list", "data": []}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, err := NewOpenAI("sk-test", "gpt-4o-mini", srv.URL+"/v1", Options{})
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "svc/main.go", 20)
	report := a.Analyze(context.Background(), path)

	assert.Empty(t, report.Error)
	assert.Equal(t, "go", report.Language)
	assert.Equal(t, "looks fine", report.Summary)
	assert.False(t, report.HasErrors)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.3, got.Temperature, 0.001)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)

	assert.NoError(t, a.Check(context.Background()))
}

func TestOpenAI_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	a, err := NewGroq("gsk-test", "mixtral-8x7b-32768", srv.URL+"/openai/v1", Options{})
	require.NoError(t, err)
	assert.Equal(t, "groq", a.Provider())

	report := a.Analyze(context.Background(), writeFile(t, t.TempDir(), "svc/a.py", 5))
	assert.Contains(t, report.Error, "groq API call failed")
	assert.Error(t, a.Check(context.Background()))
}

func TestAnthropic_Messages(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		switch r.URL.Path {
		case "/v1/messages":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]any{
					{"type": "text", "text": `{"has_errors": true, "severity": "high", `},
					{"type": "text", "text": `"errors": [{"line": 1, "type": "security_issue", "severity": "high", "message": "eval"}], "summary": "risky"}`},
				},
			})
		case "/v1/models":
			_, _ = w.Write([]byte(`{"data": []}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, err := NewAnthropic("sk-ant", "claude-3-5-sonnet-20241022", srv.URL, Options{})
	require.NoError(t, err)

	report := a.Analyze(context.Background(), writeFile(t, t.TempDir(), "web/app.js", 30))
	assert.Empty(t, report.Error)
	assert.True(t, report.HasErrors)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "eval", report.Errors[0].Message)

	assert.Equal(t, anthropicMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)

	assert.NoError(t, a.Check(context.Background()))
}

func TestAnthropic_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer srv.Close()

	a, err := NewAnthropic("sk-ant", "m", srv.URL, Options{})
	require.NoError(t, err)

	report := a.Analyze(context.Background(), writeFile(t, t.TempDir(), "svc/a.py", 5))
	assert.Contains(t, report.Error, "rate_limit_error")
	assert.Error(t, a.Check(context.Background()))
}

func TestOllama_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "Sure! " + cleanReport, "done": true})
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models": []}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewOllama(srv.URL+"/", "mistral", Options{})
	report := a.Analyze(context.Background(), writeFile(t, t.TempDir(), "svc/a.rs", 5))

	assert.Empty(t, report.Error)
	assert.Equal(t, "rust", report.Language)
	assert.Equal(t, "looks fine", report.Summary)
	assert.Equal(t, "mistral", got.Model)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.3, got.Options["temperature"], 0.001)

	assert.NoError(t, a.Check(context.Background()))
}

func TestOllama_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewOllama(srv.URL, "mistral", Options{})
	report := a.Analyze(context.Background(), writeFile(t, t.TempDir(), "svc/a.php", 5))
	assert.Equal(t, "ollama error: status 503", report.Error)
	assert.Error(t, a.Check(context.Background()))
}
