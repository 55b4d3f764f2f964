// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package ollama provides an Ollama-backed memory.Embedder for the
// retrieval service.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "http://localhost:11434"

// Embedder turns text into vectors via Ollama's /api/embeddings endpoint.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewEmbedder returns an embedder for the given daemon address and model.
func NewEmbedder(baseURL, model string) *Embedder {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Embedder{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed implements memory.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedder: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: status %d", resp.StatusCode)
	}

	var reply struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}

	vec := make([]float32, len(reply.Embedding))
	for i, v := range reply.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
