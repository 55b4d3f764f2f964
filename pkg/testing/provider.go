// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides deterministic test doubles for the pipeline:
// a scripted llm.Provider and helpers for exercising the roundtable.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/focusai/focus/pkg/llm"
)

// ScenarioProvider is a scripted llm.Provider with request capture. It
// returns queued responses in order, or delegates to a custom handler.
type ScenarioProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	requests     []llm.ChatRequest
	defaultError error
	onChat       func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

// ScriptedResponse defines one queued response.
type ScriptedResponse struct {
	Content string
	Error   error
	Usage   llm.Usage
}

// NewScenarioProvider creates an empty scenario provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

// AddResponse queues a content response.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Content: content})
	return p
}

// AddErrorResponse queues an error response.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Error: err})
	return p
}

// WithDefaultError sets the error returned once the script runs out.
func (p *ScenarioProvider) WithDefaultError(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// WithChatFunc replaces scripted playback with a custom handler. The
// handler runs outside the provider lock, so it may block (useful for
// simulating out-of-order completion with channels).
func (p *ScenarioProvider) WithChatFunc(fn func(req llm.ChatRequest) (*llm.ChatResponse, error)) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChat = fn
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	handler := p.onChat
	if handler != nil {
		p.mu.Unlock()
		return handler(req)
	}

	if p.currentIndex >= len(p.responses) {
		defaultErr := p.defaultError
		index := p.currentIndex
		p.mu.Unlock()
		if defaultErr != nil {
			return nil, defaultErr
		}
		return nil, fmt.Errorf("no more scripted responses (call %d)", index+1)
	}

	resp := p.responses[p.currentIndex]
	p.currentIndex++
	p.mu.Unlock()

	if resp.Error != nil {
		return nil, resp.Error
	}
	return &llm.ChatResponse{Content: resp.Content, Usage: resp.Usage}, nil
}

// Requests returns all captured requests.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.ChatRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// LastRequest returns the most recent request, or nil.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of Chat calls made.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Reset rewinds the script and clears captured requests.
func (p *ScenarioProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentIndex = 0
	p.requests = p.requests[:0]
}
