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

// OpenAICompatProvider implements Provider against any OpenAI-compatible
// chat completions endpoint (OpenAI, vLLM, LM Studio, llama.cpp server).
type OpenAICompatProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAICompat creates a provider for an OpenAI-compatible endpoint.
// baseURL should point at the API root, e.g. "https://api.openai.com/v1".
func NewOpenAICompat(baseURL, apiKey string) *OpenAICompatProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAICompatProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat sends a chat completion request and maps the first choice.
func (p *OpenAICompatProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completions call failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var oResp openAIChatResponse
	if err := json.Unmarshal(payload, &oResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if oResp.Error != nil {
			msg = oResp.Error.Message
		}
		return nil, fmt.Errorf("chat completions returned status %d: %s", resp.StatusCode, msg)
	}
	if len(oResp.Choices) == 0 {
		return nil, fmt.Errorf("chat completions returned no choices")
	}

	choice := oResp.Choices[0].Message
	return &ChatResponse{
		Content:   choice.Content,
		ToolCalls: choice.ToolCalls,
		Usage:     oResp.Usage,
	}, nil
}
