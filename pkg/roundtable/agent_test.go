// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package roundtable

import (
	"context"
	"strings"
	"testing"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/gateway"
	"github.com/focusai/focus/pkg/llm"
	"github.com/focusai/focus/pkg/memory"
	"github.com/focusai/focus/pkg/resilience"
	focustesting "github.com/focusai/focus/pkg/testing"
)

func testGateway(provider llm.Provider) gateway.Gateway {
	return gateway.New(provider,
		gateway.WithModel("test-model"),
		gateway.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)
}

func TestPanelAgentInvoke(t *testing.T) {
	provider := focustesting.NewScenarioProvider().
		AddResponse("Use consistent hashing for the cache keys.\nConfidence: 0.85")

	persona := core.Persona{
		Name:        "Analyst",
		Role:        "Analytical",
		Temperature: 0.4,
		Expertise:   []string{"Science", "Tech"},
	}
	agent := NewPanelAgent(persona, testGateway(provider))

	snapshot := []memory.Entry{
		{Role: memory.RoleTask, Content: "design the cache layer"},
		{Role: memory.RoleUser, Content: "we expect 10k requests per second"},
	}
	turn, err := agent.Invoke(context.Background(), "design the cache layer", snapshot, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if turn.Text != "Use consistent hashing for the cache keys." {
		t.Errorf("text = %q", turn.Text)
	}
	if turn.Confidence != 0.85 {
		t.Errorf("confidence = %v", turn.Confidence)
	}
	if turn.Persona != "Analyst" || turn.Round != 1 {
		t.Errorf("turn = %+v", turn)
	}

	req := provider.LastRequest()
	if req == nil {
		t.Fatal("no request captured")
	}
	if req.Temperature != 0.4 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	system := req.Messages[0]
	if system.Role != llm.RoleSystem || !strings.Contains(system.Content, "Analytical thinker") {
		t.Errorf("system message = %+v", system)
	}
	if !strings.Contains(system.Content, "Science, Tech") {
		t.Errorf("expertise missing from system prompt: %q", system.Content)
	}
	// Non-conversational entries ride along as system messages.
	if req.Messages[1].Role != llm.RoleSystem || !strings.HasPrefix(req.Messages[1].Content, "task: ") {
		t.Errorf("task entry = %+v", req.Messages[1])
	}
	if req.Messages[2].Role != llm.RoleUser {
		t.Errorf("user entry = %+v", req.Messages[2])
	}
	last := req.Messages[len(req.Messages)-1]
	if !strings.Contains(last.Content, "initial thoughts") {
		t.Errorf("round 1 prompt = %q", last.Content)
	}
}

func TestPanelAgentFailureMapsToAgentFailure(t *testing.T) {
	provider := focustesting.NewScenarioProvider().
		WithDefaultError(errors.New(errors.CodeProviderFailure, "down", nil).WithRecoverable(false))
	agent := NewPanelAgent(core.Persona{Name: "A", Role: "Critical", Temperature: 0.5}, testGateway(provider))

	_, err := agent.Invoke(context.Background(), "task", nil, 2, nil)
	if !errors.IsCode(err, errors.CodeAgentFailure) {
		t.Fatalf("expected AGENT_FAILURE, got %v", err)
	}
}

func TestPanelAgentCustomSystemPrompt(t *testing.T) {
	provider := focustesting.NewScenarioProvider().AddResponse("ok")
	persona := core.Persona{
		Name:         "Custom",
		Role:         "Visionary",
		SystemPrompt: "You are the resident skeptic.",
		Temperature:  0.9,
	}
	agent := NewPanelAgent(persona, testGateway(provider))
	if _, err := agent.Invoke(context.Background(), "task", nil, 1, nil); err != nil {
		t.Fatal(err)
	}
	if got := provider.LastRequest().Messages[0].Content; got != "You are the resident skeptic." {
		t.Errorf("system prompt = %q", got)
	}
}

func TestSplitConfidence(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantText string
		wantConf float64
	}{
		{"trailing line", "Answer body.\nConfidence: 0.75", "Answer body.", 0.75},
		{"case insensitive", "Answer.\nCONFIDENCE: 0.5", "Answer.", 0.5},
		{"missing", "Just an answer.", "Just an answer.", defaultConfidence},
		{"out of range", "Answer.\nConfidence: 7", "Answer.", defaultConfidence},
		{"malformed", "Answer.\nConfidence: high", "Answer.", defaultConfidence},
		{"mid-text mention kept", "Confidence: 0.9 is what I'd say.\nFinal answer.", "Confidence: 0.9 is what I'd say.\nFinal answer.", defaultConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, confidence := splitConfidence(tt.in)
			if text != tt.wantText || confidence != tt.wantConf {
				t.Errorf("splitConfidence(%q) = (%q, %v), want (%q, %v)",
					tt.in, text, confidence, tt.wantText, tt.wantConf)
			}
		})
	}
}

func TestRoundPrompt(t *testing.T) {
	if got := roundPrompt("task", 1); got != "Give your initial thoughts on: task" {
		t.Errorf("round 1 = %q", got)
	}
	if got := roundPrompt("task", 2); !strings.Contains(got, "round 2") {
		t.Errorf("round 2 = %q", got)
	}
}

type namedTool struct{ name string }

func (s namedTool) Name() string        { return s.name }
func (s namedTool) Description() string { return s.name + " tool" }
func (s namedTool) Call(context.Context, map[string]any) (any, error) {
	return nil, nil
}

func TestPanelAgentOffersOnlyPermittedTools(t *testing.T) {
	provider := focustesting.NewScenarioProvider().
		AddResponse("fine\nConfidence: 0.7").
		AddResponse("fine\nConfidence: 0.7")
	gw := gateway.New(provider,
		gateway.WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
		gateway.WithTool(namedTool{name: "calculator"}),
		gateway.WithTool(namedTool{name: "search"}),
	)

	restricted := core.Persona{Name: "A", Role: "Practical", AllowedTools: []string{"calculator"}}
	if _, err := NewPanelAgent(restricted, gw).Invoke(context.Background(), "task", nil, 1, nil); err != nil {
		t.Fatal(err)
	}
	req := provider.LastRequest()
	if len(req.Tools) != 1 || req.Tools[0].Function.Name != "calculator" {
		t.Fatalf("tools = %+v", req.Tools)
	}

	// A persona with an empty allowlist is offered nothing.
	none := core.Persona{Name: "B", Role: "Creative"}
	if _, err := NewPanelAgent(none, gw).Invoke(context.Background(), "task", nil, 1, nil); err != nil {
		t.Fatal(err)
	}
	if got := provider.LastRequest().Tools; len(got) != 0 {
		t.Errorf("tools = %+v", got)
	}
}
