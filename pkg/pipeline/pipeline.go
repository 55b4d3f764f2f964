// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline wires the full request path exposed to the presentation
// layer: enrich context, score certainty, ground when needed, then answer
// through a single agent or a roundtable, and persist the exchange.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/focusai/focus/pkg/certainty"
	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/gateway"
	"github.com/focusai/focus/pkg/grounding"
	"github.com/focusai/focus/pkg/llm"
	"github.com/focusai/focus/pkg/memory"
	"github.com/focusai/focus/pkg/roundtable"
	"github.com/focusai/focus/pkg/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Mode selects the assistant's overall response style.
type Mode string

const (
	ModeBalanced Mode = "balanced"
	ModeCreative Mode = "creative"
	ModePrecise  Mode = "precise"
	ModeResearch Mode = "research"
)

var modePrompts = map[Mode]string{
	ModeBalanced: "You are Focus AI, a helpful and intelligent assistant. Provide clear, accurate, and well-reasoned responses.",
	ModeCreative: "You are Focus AI in creative mode. Think outside the box, be imaginative, and provide innovative solutions.",
	ModePrecise:  "You are Focus AI in precise mode. Be exact, detailed, and technically accurate in your responses.",
	ModeResearch: "You are Focus AI in research mode. Provide comprehensive, well-sourced information with critical analysis.",
}

// SystemPrompt returns the system prompt for a mode, defaulting to balanced.
func SystemPrompt(mode Mode) string {
	if prompt, ok := modePrompts[mode]; ok {
		return prompt
	}
	return modePrompts[ModeBalanced]
}

// Status is the outcome flag on a pipeline result. A result always carries
// the best available content, never a silent empty answer.
type Status string

const (
	StatusAnswered            Status = "answered"
	StatusClarificationNeeded Status = "clarification_needed"
	StatusConverged           Status = "converged"
	StatusExhausted           Status = "exhausted"
	StatusAborted             Status = "aborted"
)

// Options controls one Process call.
type Options struct {
	Mode      Mode
	SessionID string

	// Tag labels the prompt for transcripts and structured logs.
	Tag string

	// Roundtable routes the task to the multi-agent orchestrator instead of
	// a single-agent response.
	Roundtable bool
	// Personas overrides the panel; empty uses registered personas, then
	// the built-in default panel.
	Personas []core.Persona

	// ForceGround and SkipGround override the threshold policy.
	ForceGround bool
	SkipGround  bool

	// RetrieveK caps retrieval enrichment. Zero uses the default.
	RetrieveK int
}

const defaultRetrieveK = 3

// Result is the outcome of one Process call.
type Result struct {
	Prompt         core.Prompt                 `json:"prompt"`
	Score          *certainty.Score            `json:"score"`
	Grounded       *grounding.GroundedPrompt   `json:"grounded,omitempty"`
	Response       string                      `json:"response"`
	SuggestedTools []string                    `json:"suggested_tools,omitempty"`
	ToolResults    map[string]any              `json:"tool_results,omitempty"`
	Session        *roundtable.SessionSnapshot `json:"session,omitempty"`
	Status         Status                      `json:"status"`
}

// Pipeline is the core facade consumed by the presentation layer.
type Pipeline struct {
	analyzer     *certainty.Analyzer
	grounder     *grounding.Grounder
	orchestrator *roundtable.Orchestrator
	gw           gateway.Gateway
	store        *memory.Store
	transcripts  *memory.TranscriptStore
	logger       *slog.Logger
	tracer       trace.Tracer
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTranscripts enables durable persistence of sessions and exchanges.
func WithTranscripts(ts *memory.TranscriptStore) PipelineOption {
	return func(p *Pipeline) { p.transcripts = ts }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// New assembles the pipeline from its stages.
func New(analyzer *certainty.Analyzer, grounder *grounding.Grounder, orchestrator *roundtable.Orchestrator, gw gateway.Gateway, store *memory.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		analyzer:     analyzer,
		grounder:     grounder,
		orchestrator: orchestrator,
		gw:           gw,
		store:        store,
		logger:       slog.Default(),
		tracer:       otel.Tracer("focus/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze exposes certainty scoring to the presentation layer.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*certainty.Score, error) {
	return p.analyzer.Analyze(ctx, core.NewPrompt(text), p.store.Window())
}

// Ground exposes a single grounding attempt to the presentation layer.
func (p *Pipeline) Ground(ctx context.Context, text string) (*grounding.GroundedPrompt, error) {
	prompt := core.NewPrompt(text)
	score, err := p.analyzer.Analyze(ctx, prompt, p.store.Window())
	if err != nil {
		return nil, err
	}
	return p.grounder.Ground(ctx, prompt, score, p.store.Window())
}

// Process runs the full data flow for one user input.
//
// Clarification-required and session-aborted conditions are returned as
// typed errors alongside a Result that still carries the best available
// partial content and an explicit status.
func (p *Pipeline) Process(ctx context.Context, text string, opts Options) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "input text is empty", nil)
	}
	if opts.SessionID != "" {
		ctx = core.WithSessionID(ctx, opts.SessionID)
	}

	ctx, span := p.tracer.Start(ctx, "Pipeline.Process", trace.WithAttributes(
		attribute.Bool("roundtable", opts.Roundtable),
		attribute.String("mode", string(opts.Mode)),
	))
	defer span.End()

	prompt := core.NewTaggedPrompt(text, opts.Tag)
	result := &Result{Prompt: prompt}

	k := opts.RetrieveK
	if k <= 0 {
		k = defaultRetrieveK
	}
	p.store.Enrich(ctx, text, k)
	p.enrichFromTranscripts(ctx, text)

	score, err := p.analyzer.Analyze(ctx, prompt, p.store.Window())
	if err != nil {
		return nil, err
	}
	result.Score = score

	effective := prompt.Text
	if opts.ForceGround || (!opts.SkipGround && p.analyzer.NeedsGrounding(score)) {
		grounded, err := p.grounder.Ground(ctx, prompt, score, p.store.Window())
		if err != nil {
			return nil, err
		}
		result.Grounded = grounded

		if grounded.RequiresClarification {
			result.Status = StatusClarificationNeeded
			result.Response = grounded.ClarificationRequest
			return result, errors.New(errors.CodeClarificationRequired,
				"grounding needs more user input", nil).
				WithContext("clarification", grounded.ClarificationRequest)
		}
		if !grounded.NoImprovement {
			effective = grounded.Rewritten
			result.Score = grounded.After
		}
	}

	result.SuggestedTools = tools.Suggest(effective)
	result.ToolResults = p.invokeSuggested(ctx, result.SuggestedTools, effective)

	if opts.Roundtable {
		return p.runRoundtable(ctx, effective, opts, result)
	}
	return p.respond(ctx, effective, opts, result)
}

// enrichFromTranscripts surfaces similar past exchanges from the durable
// store as window snippets, alongside retrieval enrichment. History is a
// bonus, not a dependency: lookup failures are absorbed.
func (p *Pipeline) enrichFromTranscripts(ctx context.Context, query string) {
	if p.transcripts == nil {
		return
	}
	exchanges, err := p.transcripts.SimilarExchanges(ctx, query, 2)
	if err != nil {
		p.logger.DebugContext(ctx, "similar exchange lookup failed",
			slog.String("error", err.Error()),
		)
		return
	}
	for _, ex := range exchanges {
		p.store.Window().Append(memory.RoleSnippet,
			fmt.Sprintf("previously asked %q and answered: %s", ex.UserMessage, ex.AIResponse))
	}
}

// invokeSuggested runs suggested tools that are actually registered on the
// gateway. Tool failures are absorbed: suggestions are opportunistic.
func (p *Pipeline) invokeSuggested(ctx context.Context, suggested []string, text string) map[string]any {
	registered := make(map[string]bool)
	for _, name := range p.gw.ToolNames() {
		registered[name] = true
	}

	var results map[string]any
	for _, name := range suggested {
		if !registered[name] {
			continue
		}
		args := map[string]any{"query": text}
		if name == "calculator" {
			args = map[string]any{"expression": text}
		}
		value, err := p.gw.InvokeTool(ctx, name, args)
		if err != nil {
			p.logger.DebugContext(ctx, "suggested tool failed",
				slog.String("tool", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if results == nil {
			results = make(map[string]any)
		}
		results[name] = value
		p.store.Window().Append(memory.RoleSnippet, fmt.Sprintf("%s result: %v", name, value))
	}
	return results
}

func (p *Pipeline) respond(ctx context.Context, text string, opts Options, result *Result) (*Result, error) {
	generated, err := p.gw.Generate(ctx, gateway.GenerateRequest{
		Prompt: text,
		Constraints: gateway.Constraints{
			SystemPrompt: SystemPrompt(opts.Mode),
		},
		Context: windowMessages(p.store.Window()),
	})
	if err != nil {
		return nil, err
	}

	result.Response = generated.Text
	result.Status = StatusAnswered
	p.store.RecordExchange(result.Prompt.Text, generated.Text)
	p.persistExchange(ctx, opts.SessionID, result.Prompt.Text, generated.Text)
	return result, nil
}

func (p *Pipeline) runRoundtable(ctx context.Context, task string, opts Options, result *Result) (*Result, error) {
	personas := opts.Personas
	if len(personas) == 0 {
		personas = p.store.Personas()
	}
	if len(personas) == 0 {
		personas = core.DefaultPanel()
	}

	session, err := p.orchestrator.Run(ctx, task, personas, p.store.Window())
	if session != nil {
		snap := session.Snapshot()
		result.Session = &snap
	}
	if err != nil {
		result.Status = StatusAborted
		result.Response = bestPartialAnswer(result.Session)
		p.persistSession(ctx, session)
		return result, err
	}

	answer := session.Answer()
	result.Response = answer.Text
	if answer.Converged {
		result.Status = StatusConverged
	} else {
		result.Status = StatusExhausted
	}

	p.store.RecordExchange(result.Prompt.Text, answer.Text)
	p.persistSession(ctx, session)
	p.persistExchange(ctx, session.ID(), result.Prompt.Text, answer.Text)
	return result, nil
}

// bestPartialAnswer picks the highest-confidence recorded turn so aborted
// sessions still surface whatever the panel produced.
func bestPartialAnswer(snap *roundtable.SessionSnapshot) string {
	if snap == nil || len(snap.Turns) == 0 {
		return ""
	}
	best := snap.Turns[0]
	for _, turn := range snap.Turns[1:] {
		if turn.Confidence > best.Confidence {
			best = turn
		}
	}
	return best.Text
}

func (p *Pipeline) persistSession(ctx context.Context, session *roundtable.Session) {
	if p.transcripts == nil || session == nil {
		return
	}
	if err := p.transcripts.SaveSession(ctx, session.Record()); err != nil {
		p.logger.ErrorContext(ctx, "failed to persist session",
			slog.String("session_id", session.ID()),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pipeline) persistExchange(ctx context.Context, sessionID, userMsg, response string) {
	if p.transcripts == nil {
		return
	}
	if err := p.transcripts.StoreExchange(ctx, sessionID, userMsg, response, p.store.Window().TaskStatement()); err != nil {
		p.logger.ErrorContext(ctx, "failed to persist exchange",
			slog.String("error", err.Error()),
		)
	}
}

func windowMessages(window *memory.ContextWindow) []llm.Message {
	entries := window.Snapshot()
	messages := make([]llm.Message, 0, len(entries))
	for _, entry := range entries {
		switch entry.Role {
		case memory.RoleUser:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: entry.Content})
		case memory.RoleAssistant:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: entry.Content})
		default:
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: entry.Role + ": " + entry.Content})
		}
	}
	return messages
}
