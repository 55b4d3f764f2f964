// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package grounding rewrites low-certainty prompts using only material
// already present in the context window. The grounder never invents
// specifics: a deficiency it cannot resolve from context becomes an explicit
// clarification request instead of a guess.
package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/focusai/focus/pkg/certainty"
	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/memory"
	"github.com/focusai/focus/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Scorer re-scores rewritten prompts. Satisfied by *certainty.Analyzer.
type Scorer interface {
	Analyze(ctx context.Context, prompt core.Prompt, window *memory.ContextWindow) (*certainty.Score, error)
}

// GroundedPrompt is the outcome of one grounding attempt.
type GroundedPrompt struct {
	Original  core.Prompt            `json:"original"`
	Rewritten string                 `json:"rewritten"`
	Addressed []certainty.Deficiency `json:"addressed,omitempty"`

	// RequiresClarification is set when at least one deficiency could not be
	// resolved from context. Rewritten then equals the original text and no
	// re-score was performed.
	RequiresClarification bool   `json:"requires_clarification,omitempty"`
	ClarificationRequest  string `json:"clarification_request,omitempty"`

	// NoImprovement is set when the re-score was not strictly greater than
	// the original score. Callers fall back to the ungrounded flow.
	NoImprovement bool `json:"no_improvement,omitempty"`

	Before *certainty.Score `json:"before"`
	After  *certainty.Score `json:"after,omitempty"`
}

// severityOrder fixes the order in which deficiencies are resolved, most
// severe ambiguity first.
var severityOrder = []certainty.Deficiency{
	certainty.DeficiencyAmbiguousReferent,
	certainty.DeficiencyMissingContext,
	certainty.DeficiencyUnderspecifiedGoal,
	certainty.DeficiencyVagueQuantifier,
	certainty.DeficiencyTooBrief,
	certainty.DeficiencyUnfocused,
}

// Grounder rewrites prompts. Stateless: each call works on the snapshot it
// is given and grounding is attempted at most once per prompt.
type Grounder struct {
	scorer  Scorer
	metrics *telemetry.PipelineMetrics
	emitter core.EventEmitter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// GrounderOption configures a Grounder.
type GrounderOption func(*Grounder)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *telemetry.PipelineMetrics) GrounderOption {
	return func(g *Grounder) { g.metrics = m }
}

// WithEmitter attaches a semantic event emitter.
func WithEmitter(e core.EventEmitter) GrounderOption {
	return func(g *Grounder) { g.emitter = e }
}

// WithLogger sets the grounder logger.
func WithLogger(logger *slog.Logger) GrounderOption {
	return func(g *Grounder) { g.logger = logger }
}

// NewGrounder creates a Grounder that re-scores through scorer.
func NewGrounder(scorer Scorer, opts ...GrounderOption) *Grounder {
	g := &Grounder{
		scorer:  scorer,
		emitter: core.NoopEventEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("focus/grounding"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ground rewrites the prompt according to its score's deficiencies, then
// re-scores the rewritten text exactly once. If any deficiency cannot be
// resolved from the window, the original text is returned unchanged with
// RequiresClarification set and no re-score happens.
func (g *Grounder) Ground(ctx context.Context, prompt core.Prompt, score *certainty.Score, window *memory.ContextWindow) (*GroundedPrompt, error) {
	if score == nil {
		return nil, errors.New(errors.CodeInvalidInput, "score is required", nil)
	}

	ctx, span := g.tracer.Start(ctx, "Grounding.Ground", trace.WithAttributes(
		attribute.Float64("score.before", score.Value),
	))
	defer span.End()

	grounded := &GroundedPrompt{
		Original: prompt,
		Before:   score,
	}

	entries := window.Snapshot()
	task := window.TaskStatement()
	sessionID, _ := core.SessionID(ctx)

	text := prompt.Text
	var unresolved []certainty.Deficiency
	for _, deficiency := range severityOrder {
		if !score.Has(deficiency) {
			continue
		}
		rewritten, ok := applyStrategy(deficiency, text, task, entries)
		if !ok {
			unresolved = append(unresolved, deficiency)
			continue
		}
		text = rewritten
		grounded.Addressed = append(grounded.Addressed, deficiency)
	}

	if len(unresolved) > 0 {
		// Correctness invariant: never fabricate. Surface what is missing
		// and leave the prompt untouched.
		grounded.Rewritten = prompt.Text
		grounded.Addressed = nil
		grounded.RequiresClarification = true
		grounded.ClarificationRequest = clarificationRequest(unresolved)
		span.SetAttributes(attribute.Bool("grounding.clarification", true))
		g.metrics.RecordGroundingOutcome(ctx, "clarification_required")
		g.emitter.Emit(ctx, core.NewEvent(core.EventClarificationNeeded, sessionID, map[string]any{
			"prompt_id":  prompt.ID,
			"unresolved": unresolved,
		}))
		return grounded, nil
	}

	text = enhance(text, score)
	grounded.Rewritten = text

	after, err := g.scorer.Analyze(ctx, core.Prompt{ID: prompt.ID, Text: text, Tag: prompt.Tag, SubmittedAt: prompt.SubmittedAt}, window)
	if err != nil {
		return nil, err
	}
	grounded.After = after
	span.SetAttributes(attribute.Float64("score.after", after.Value))

	if after.Value <= score.Value {
		grounded.NoImprovement = true
		g.metrics.RecordGroundingOutcome(ctx, "no_improvement")
		g.emitter.Emit(ctx, core.NewEvent(core.EventGroundingIneffective, sessionID, map[string]any{
			"prompt_id": prompt.ID,
		}))
		return grounded, nil
	}

	g.metrics.RecordGroundingOutcome(ctx, "improved")
	g.emitter.Emit(ctx, core.NewEvent(core.EventGroundingApplied, sessionID, map[string]any{
		"prompt_id": prompt.ID,
		"addressed": grounded.Addressed,
	}))
	return grounded, nil
}

// applyStrategy resolves one deficiency using window material. Returns the
// rewritten text and whether the deficiency was resolvable.
func applyStrategy(deficiency certainty.Deficiency, text, task string, entries []memory.Entry) (string, bool) {
	switch deficiency {
	case certainty.DeficiencyAmbiguousReferent:
		entity := mostRecentEntity(entries)
		if entity == "" {
			return text, false
		}
		return fmt.Sprintf("Regarding %q: %s", entity, text), true

	case certainty.DeficiencyMissingContext:
		if task == "" {
			return text, false
		}
		return fmt.Sprintf("Context and Prerequisites:\n- %s\n\n%s", task, text), true

	case certainty.DeficiencyUnderspecifiedGoal:
		if task == "" {
			return text, false
		}
		return fmt.Sprintf("%s The goal is: %s", text, task), true

	case certainty.DeficiencyVagueQuantifier:
		values := numericTokens(entries)
		if len(values) == 0 {
			return text, false
		}
		return fmt.Sprintf("%s Use the explicit values already established: %s.", text, strings.Join(values, ", ")), true

	case certainty.DeficiencyTooBrief:
		if task == "" {
			return text, false
		}
		return fmt.Sprintf("%s (This relates to the task: %s)", text, task), true

	case certainty.DeficiencyUnfocused:
		return text + " Address one question at a time, in order.", true
	}
	return text, false
}

// mostRecentEntity returns the first sentence of the most recent
// conversational window entry, the closest thing to "the most recent
// matching entity" available without a parser.
func mostRecentEntity(entries []memory.Entry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		role := entries[i].Role
		if role != memory.RoleUser && role != memory.RoleAssistant && role != memory.RoleTask {
			continue
		}
		sentence := firstSentence(entries[i].Content)
		if sentence != "" {
			return sentence
		}
	}
	return ""
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			text = text[:i]
			break
		}
	}
	const maxEntity = 120
	if len(text) > maxEntity {
		text = text[:maxEntity]
	}
	return strings.TrimSpace(text)
}

// numericTokens collects explicit numbers from window entries, oldest first.
func numericTokens(entries []memory.Entry) []string {
	var out []string
	seen := make(map[string]bool)
	for _, entry := range entries {
		for _, token := range strings.Fields(entry.Content) {
			token = strings.Trim(token, ".,;:!?\"'()")
			if token == "" || seen[token] {
				continue
			}
			if hasDigit(token) {
				seen[token] = true
				out = append(out, token)
			}
		}
	}
	const maxValues = 4
	if len(out) > maxValues {
		out = out[:maxValues]
	}
	return out
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// enhance appends structure and format hints. Hints never add facts.
func enhance(text string, score *certainty.Score) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "explain") {
		text += " Please provide a detailed explanation with examples."
	}
	if len(strings.Fields(text)) > 20 {
		text += " Please structure your response with clear sections."
	}
	for _, word := range []string{"list", "steps", "points"} {
		if strings.Contains(lower, word) {
			text += " Format as a numbered list."
			break
		}
	}
	return text
}

func clarificationRequest(unresolved []certainty.Deficiency) string {
	asks := make([]string, 0, len(unresolved))
	for _, deficiency := range unresolved {
		switch deficiency {
		case certainty.DeficiencyAmbiguousReferent:
			asks = append(asks, "what \"it\"/\"this\" refers to")
		case certainty.DeficiencyMissingContext:
			asks = append(asks, "the background or task this relates to")
		case certainty.DeficiencyUnderspecifiedGoal:
			asks = append(asks, "what outcome you want")
		case certainty.DeficiencyVagueQuantifier:
			asks = append(asks, "concrete amounts or ranges")
		case certainty.DeficiencyTooBrief:
			asks = append(asks, "more detail about the request")
		default:
			asks = append(asks, string(deficiency))
		}
	}
	return "Please clarify: " + strings.Join(asks, "; ") + "."
}
