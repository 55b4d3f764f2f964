// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package roundtable

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/gateway"
	"github.com/focusai/focus/pkg/llm"
	"github.com/focusai/focus/pkg/memory"
	"github.com/google/uuid"
)

const defaultConfidence = 0.5

// Agent produces one turn for one persona. Agents are stateless between
// turns: all continuity comes from the window snapshot passed in, which is
// what makes them safe to invoke in parallel within a round.
type Agent interface {
	Persona() core.Persona
	Invoke(ctx context.Context, task string, snapshot []memory.Entry, round int, respondsTo []string) (AgentTurn, error)
}

// PanelAgent is the production Agent: one persona bound to the capability
// gateway.
type PanelAgent struct {
	persona core.Persona
	gw      gateway.Gateway
}

// NewPanelAgent binds a persona to the gateway.
func NewPanelAgent(persona core.Persona, gw gateway.Gateway) *PanelAgent {
	return &PanelAgent{persona: persona, gw: gw}
}

// Persona returns the bound persona.
func (a *PanelAgent) Persona() core.Persona { return a.persona }

// Invoke produces one turn. Provider failures surface as AGENT_FAILURE so
// the orchestrator can apply round-level policy instead of crashing the
// session.
func (a *PanelAgent) Invoke(ctx context.Context, task string, snapshot []memory.Entry, round int, respondsTo []string) (AgentTurn, error) {
	result, err := a.gw.Generate(ctx, gateway.GenerateRequest{
		Prompt: roundPrompt(task, round),
		Constraints: gateway.Constraints{
			SystemPrompt: a.systemPrompt(),
			Temperature:  a.persona.Temperature,
			AllowedTools: a.permittedTools(),
		},
		Context: contextMessages(snapshot),
	})
	if err != nil {
		return AgentTurn{}, errors.New(errors.CodeAgentFailure,
			fmt.Sprintf("agent %q failed in round %d", a.persona.Name, round), err).
			WithAttribute("persona", a.persona.Name)
	}

	text, confidence := splitConfidence(result.Text)
	return AgentTurn{
		ID:         uuid.NewString(),
		Persona:    a.persona.Name,
		Round:      round,
		Text:       text,
		Confidence: confidence,
		RespondsTo: respondsTo,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// permittedTools intersects the persona's capability subset with the
// gateway registry, so the provider is only ever offered tools this persona
// may invoke.
func (a *PanelAgent) permittedTools() []string {
	var names []string
	for _, name := range a.gw.ToolNames() {
		if a.persona.MayUse(name) {
			names = append(names, name)
		}
	}
	return names
}

func (a *PanelAgent) systemPrompt() string {
	if a.persona.SystemPrompt != "" {
		return a.persona.SystemPrompt
	}
	perspective := fmt.Sprintf("As a %s thinker", a.persona.Role)
	if len(a.persona.Expertise) > 0 {
		perspective += fmt.Sprintf(" with expertise in %s", strings.Join(a.persona.Expertise, ", "))
	}
	return perspective + ", you contribute one focused turn to a panel discussion. " +
		`End your reply with a line "Confidence: 0.NN" estimating how confident you are in your answer.`
}

func roundPrompt(task string, round int) string {
	if round == 1 {
		return fmt.Sprintf("Give your initial thoughts on: %s", task)
	}
	return fmt.Sprintf("Considering the panel's previous responses in the context above, give your round %d analysis of: %s", round, task)
}

// contextMessages maps window entries to chat messages. Non-conversational
// entries (task statement, snippets, round digests) are carried as system
// messages so every provider sees them.
func contextMessages(snapshot []memory.Entry) []llm.Message {
	messages := make([]llm.Message, 0, len(snapshot))
	for _, entry := range snapshot {
		switch entry.Role {
		case memory.RoleUser:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: entry.Content})
		case memory.RoleAssistant:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: entry.Content})
		default:
			messages = append(messages, llm.Message{
				Role:    llm.RoleSystem,
				Content: entry.Role + ": " + entry.Content,
			})
		}
	}
	return messages
}

// splitConfidence extracts the trailing "Confidence: 0.NN" line. Missing or
// malformed estimates default to 0.5.
func splitConfidence(text string) (string, float64) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, "confidence:") {
			break
		}
		raw := strings.TrimSpace(line[len("confidence:"):])
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || value > 1 {
			return strings.TrimSpace(strings.Join(lines[:i], "\n")), defaultConfidence
		}
		return strings.TrimSpace(strings.Join(lines[:i], "\n")), value
	}
	return strings.TrimSpace(text), defaultConfidence
}
