// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the shared vocabulary of the Focus AI pipeline:
// prompts, personas, capability interfaces and semantic events.
package core

import "context"

// Tool is a concrete capability the gateway can invoke on behalf of an agent.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Snippet is a unit of retrieved context.
type Snippet struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
	Source string  `json:"source,omitempty"`
}

// Retriever looks up snippets relevant to a query from an external
// retrieval service. Implementations must return snippets in descending
// relevance order. The pipeline treats the service as optional: a nil
// Retriever means "proceed without retrieved snippets".
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Snippet, error)
}
