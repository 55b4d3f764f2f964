// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider talks to a local Ollama daemon over its /api/chat endpoint.
// Streaming is disabled; the pipeline consumes whole responses.
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllama returns a provider for the given base URL, defaulting to the
// standard local daemon address.
func NewOllama(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaChatPayload struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Tools    []Tool         `json:"tools,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatReply struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	EvalCount       int     `json:"eval_count"`
	PromptEvalCount int     `json:"prompt_eval_count"`
}

// Chat implements Provider.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	payload := ollamaChatPayload{
		Model:    req.Model,
		Messages: req.Messages,
		Tools:    req.Tools,
	}
	if req.Temperature != 0 {
		payload.Options = map[string]any{"temperature": req.Temperature}
	}

	reply, err := p.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Content:   reply.Message.Content,
		ToolCalls: reply.Message.ToolCalls,
		Usage: Usage{
			PromptTokens:     reply.PromptEvalCount,
			CompletionTokens: reply.EvalCount,
			TotalTokens:      reply.PromptEvalCount + reply.EvalCount,
		},
	}, nil
}

func (p *OllamaProvider) post(ctx context.Context, payload ollamaChatPayload) (*ollamaChatReply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var reply ollamaChatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	return &reply, nil
}
