// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import "context"

// MockProvider is a canned Provider for wiring tests and the "mock" CLI
// provider. Scripted multi-call scenarios live in pkg/testing.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}
