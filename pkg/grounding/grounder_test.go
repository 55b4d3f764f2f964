// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package grounding

import (
	"context"
	"strings"
	"testing"

	"github.com/focusai/focus/pkg/certainty"
	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/memory"
)

// scriptedScorer returns a fixed score and counts re-score calls.
type scriptedScorer struct {
	score *certainty.Score
	err   error
	calls int
}

func (s *scriptedScorer) Analyze(_ context.Context, _ core.Prompt, _ *memory.ContextWindow) (*certainty.Score, error) {
	s.calls++
	return s.score, s.err
}

func TestGroundNilScore(t *testing.T) {
	g := NewGrounder(&scriptedScorer{})
	_, err := g.Ground(context.Background(), core.NewPrompt("anything"), nil, memory.NewContextWindow(0))
	if !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestGroundImprovement(t *testing.T) {
	window := memory.NewContextWindow(0)
	window.AppendPinned(memory.RoleTask, "migrate the billing service to the new cluster")

	scorer := &scriptedScorer{score: &certainty.Score{Value: 0.7}}
	g := NewGrounder(scorer)

	prompt := core.NewPrompt("Fix it")
	before := &certainty.Score{
		Value:        0.3,
		Deficiencies: []certainty.Deficiency{certainty.DeficiencyAmbiguousReferent, certainty.DeficiencyTooBrief},
	}

	grounded, err := g.Ground(context.Background(), prompt, before, window)
	if err != nil {
		t.Fatal(err)
	}
	if grounded.RequiresClarification {
		t.Fatalf("unexpected clarification: %q", grounded.ClarificationRequest)
	}
	if grounded.NoImprovement {
		t.Fatal("expected improvement")
	}
	if scorer.calls != 1 {
		t.Errorf("re-score must happen exactly once, got %d calls", scorer.calls)
	}
	if grounded.After == nil || grounded.After.Value != 0.7 {
		t.Errorf("After = %+v", grounded.After)
	}
	// Rewrites are additive: the original text survives verbatim and every
	// added fragment comes from the window.
	if !strings.Contains(grounded.Rewritten, "Fix it") {
		t.Errorf("original text lost: %q", grounded.Rewritten)
	}
	if !strings.Contains(grounded.Rewritten, "migrate the billing service") {
		t.Errorf("task material missing: %q", grounded.Rewritten)
	}
	if len(grounded.Addressed) != 2 ||
		grounded.Addressed[0] != certainty.DeficiencyAmbiguousReferent ||
		grounded.Addressed[1] != certainty.DeficiencyTooBrief {
		t.Errorf("Addressed = %v", grounded.Addressed)
	}
}

func TestGroundNoImprovement(t *testing.T) {
	window := memory.NewContextWindow(0)
	window.AppendPinned(memory.RoleTask, "tune the cache eviction policy")

	scorer := &scriptedScorer{score: &certainty.Score{Value: 0.3}}
	g := NewGrounder(scorer)

	before := &certainty.Score{
		Value:        0.3,
		Deficiencies: []certainty.Deficiency{certainty.DeficiencyTooBrief},
	}
	grounded, err := g.Ground(context.Background(), core.NewPrompt("Tune it"), before, window)
	if err != nil {
		t.Fatal(err)
	}
	if !grounded.NoImprovement {
		t.Error("equal score must count as no improvement")
	}
	if grounded.After == nil {
		t.Error("After must still carry the re-score")
	}
}

func TestGroundClarificationWithoutRescore(t *testing.T) {
	// Empty window: the ambiguous referent has nothing to bind to.
	window := memory.NewContextWindow(0)
	scorer := &scriptedScorer{score: &certainty.Score{Value: 0.9}}
	g := NewGrounder(scorer)

	prompt := core.NewPrompt("It broke again")
	before := &certainty.Score{
		Value:        0.2,
		Deficiencies: []certainty.Deficiency{certainty.DeficiencyAmbiguousReferent},
	}
	grounded, err := g.Ground(context.Background(), prompt, before, window)
	if err != nil {
		t.Fatal(err)
	}
	if !grounded.RequiresClarification {
		t.Fatal("expected clarification")
	}
	if grounded.Rewritten != prompt.Text {
		t.Errorf("text must stay untouched, got %q", grounded.Rewritten)
	}
	if grounded.Addressed != nil {
		t.Errorf("no deficiency counts as addressed, got %v", grounded.Addressed)
	}
	if scorer.calls != 0 {
		t.Errorf("no re-score on clarification, got %d calls", scorer.calls)
	}
	if !strings.Contains(grounded.ClarificationRequest, "refers to") {
		t.Errorf("clarification should name the gap: %q", grounded.ClarificationRequest)
	}
}

func TestGroundPartialResolutionStillClarifies(t *testing.T) {
	// unfocused is always resolvable, but the unresolvable vague quantifier
	// must force the whole attempt into clarification.
	window := memory.NewContextWindow(0)
	scorer := &scriptedScorer{score: &certainty.Score{Value: 0.9}}
	g := NewGrounder(scorer)

	before := &certainty.Score{
		Value:        0.2,
		Deficiencies: []certainty.Deficiency{certainty.DeficiencyVagueQuantifier, certainty.DeficiencyUnfocused},
	}
	prompt := core.NewPrompt("Show me some of the metrics? And some logs? And some traces? And alerts?")
	grounded, err := g.Ground(context.Background(), prompt, before, window)
	if err != nil {
		t.Fatal(err)
	}
	if !grounded.RequiresClarification {
		t.Fatal("expected clarification")
	}
	if grounded.Rewritten != prompt.Text {
		t.Errorf("text must stay untouched, got %q", grounded.Rewritten)
	}
	if scorer.calls != 0 {
		t.Errorf("no re-score on clarification, got %d calls", scorer.calls)
	}
}

func TestApplyStrategyOrder(t *testing.T) {
	window := memory.NewContextWindow(0)
	window.AppendPinned(memory.RoleTask, "reduce p99 latency below 200ms")
	window.Append(memory.RoleUser, "the gateway currently retries 3 times")

	scorer := &scriptedScorer{score: &certainty.Score{Value: 0.9}}
	g := NewGrounder(scorer)

	before := &certainty.Score{
		Value: 0.2,
		Deficiencies: []certainty.Deficiency{
			certainty.DeficiencyTooBrief,
			certainty.DeficiencyVagueQuantifier,
			certainty.DeficiencyAmbiguousReferent,
		},
	}
	grounded, err := g.Ground(context.Background(), core.NewPrompt("Cut some"), before, window)
	if err != nil {
		t.Fatal(err)
	}
	// Resolution follows severity order, not the detection order on the score.
	want := []certainty.Deficiency{
		certainty.DeficiencyAmbiguousReferent,
		certainty.DeficiencyVagueQuantifier,
		certainty.DeficiencyTooBrief,
	}
	if len(grounded.Addressed) != len(want) {
		t.Fatalf("Addressed = %v", grounded.Addressed)
	}
	for i := range want {
		if grounded.Addressed[i] != want[i] {
			t.Errorf("Addressed[%d] = %v, want %v", i, grounded.Addressed[i], want[i])
		}
	}
	if !strings.Contains(grounded.Rewritten, "200ms") && !strings.Contains(grounded.Rewritten, "3") {
		t.Errorf("expected explicit values from the window: %q", grounded.Rewritten)
	}
}

func TestMostRecentEntitySkipsNonConversational(t *testing.T) {
	entries := []memory.Entry{
		{Role: memory.RoleUser, Content: "The indexer crashed on startup. More detail follows."},
		{Role: memory.RoleSnippet, Content: "retrieved docs about unrelated things"},
		{Role: memory.RoleRound, Content: "Round 1 responses: ..."},
	}
	if got := mostRecentEntity(entries); got != "The indexer crashed on startup" {
		t.Errorf("mostRecentEntity = %q", got)
	}
}

func TestNumericTokens(t *testing.T) {
	entries := []memory.Entry{
		{Content: "retry 3 times with 100ms backoff, cap at 10s, budget 8000 chars, extra 42"},
	}
	got := numericTokens(entries)
	if len(got) != 4 {
		t.Fatalf("expected cap of 4 values, got %v", got)
	}
	if got[0] != "3" || got[1] != "100ms" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestEnhanceHints(t *testing.T) {
	out := enhance("explain the steps involved", &certainty.Score{})
	if !strings.Contains(out, "detailed explanation") {
		t.Errorf("missing explain hint: %q", out)
	}
	if !strings.Contains(out, "numbered list") {
		t.Errorf("missing list hint: %q", out)
	}
}
