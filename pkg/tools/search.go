// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/memory"
)

const defaultSearchLimit = 5

// ContextSearch searches the accumulated context window for entries
// containing the query terms. It works entirely on session state and never
// reaches the network.
type ContextSearch struct {
	window *memory.ContextWindow
}

// NewContextSearch creates a search tool over the given window.
func NewContextSearch(window *memory.ContextWindow) *ContextSearch {
	return &ContextSearch{window: window}
}

func (s *ContextSearch) Name() string { return "search" }

func (s *ContextSearch) Description() string {
	return "Search accumulated session context for relevant entries"
}

// Call searches for args["query"], returning up to args["limit"] matches
// ordered most recent first.
func (s *ContextSearch) Call(_ context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: query is required")
	}
	limit := defaultSearchLimit
	switch v := args["limit"].(type) {
	case int:
		limit = v
	case float64:
		limit = int(v)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	terms := strings.Fields(strings.ToLower(query))
	entries := s.window.Snapshot()

	var matches []map[string]any
	for i := len(entries) - 1; i >= 0 && len(matches) < limit; i-- {
		content := strings.ToLower(entries[i].Content)
		for _, term := range terms {
			if strings.Contains(content, term) {
				matches = append(matches, map[string]any{
					"role":    entries[i].Role,
					"content": entries[i].Content,
				})
				break
			}
		}
	}
	return matches, nil
}

var _ core.Tool = (*ContextSearch)(nil)
