// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package roundtable

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/memory"
	"github.com/google/uuid"
)

func testPanel(names ...string) []core.Persona {
	panel := make([]core.Persona, 0, len(names))
	for _, name := range names {
		panel = append(panel, core.Persona{Name: name, Role: "Analytical", Temperature: 0.5})
	}
	return panel
}

// stubAgent produces turns from a function, so each test scripts behavior per
// persona and per round.
type stubAgent struct {
	persona core.Persona
	invoke  func(ctx context.Context, round int) (string, float64, error)
}

func (a *stubAgent) Persona() core.Persona { return a.persona }

func (a *stubAgent) Invoke(ctx context.Context, _ string, _ []memory.Entry, round int, respondsTo []string) (AgentTurn, error) {
	text, confidence, err := a.invoke(ctx, round)
	if err != nil {
		return AgentTurn{}, err
	}
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

func withStubs(stubs map[string]*stubAgent) OrchestratorOption {
	return WithAgentFactory(func(p core.Persona) Agent { return stubs[p.Name] })
}

func TestRunValidation(t *testing.T) {
	o := NewOrchestrator(nil)
	window := memory.NewContextWindow(0)

	if _, err := o.Run(context.Background(), "  ", testPanel("A"), window); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("empty task: got %v", err)
	}
	if _, err := o.Run(context.Background(), "task", nil, window); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("no personas: got %v", err)
	}
	bad := []core.Persona{{Name: "A"}} // missing role
	if _, err := o.Run(context.Background(), "task", bad, window); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("invalid persona: got %v", err)
	}
}

func TestRunConvergesFirstRound(t *testing.T) {
	answer := "Shard the table by tenant id and backfill in batches."
	stubs := map[string]*stubAgent{}
	for i, name := range []string{"A", "B", "C"} {
		confidence := 0.6 + float64(i)*0.1
		stubs[name] = &stubAgent{
			persona: core.Persona{Name: name, Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return answer, confidence, nil
			},
		}
	}

	o := NewOrchestrator(nil, withStubs(stubs))
	window := memory.NewContextWindow(0)
	session, err := o.Run(context.Background(), "How should we shard the table?", testPanel("A", "B", "C"), window)
	if err != nil {
		t.Fatal(err)
	}

	if session.State() != StateConverged {
		t.Errorf("state = %v", session.State())
	}
	if session.Rounds() != 1 {
		t.Errorf("rounds = %d, want 1", session.Rounds())
	}
	synthesis := session.Answer()
	if synthesis == nil || !synthesis.Converged {
		t.Fatalf("answer = %+v", synthesis)
	}
	if synthesis.Text != answer {
		t.Errorf("answer text = %q", synthesis.Text)
	}
	// Highest confidence turn wins the synthesis.
	if synthesis.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", synthesis.Confidence)
	}
	if len(synthesis.SourceTurns) != 3 {
		t.Errorf("source turns = %v", synthesis.SourceTurns)
	}
	// Convergence in round 1 leaves no digest behind.
	for _, entry := range window.Snapshot() {
		if entry.Role == memory.RoleRound {
			t.Errorf("unexpected round digest: %q", entry.Content)
		}
	}
}

func TestRunTurnsInRegistrationOrder(t *testing.T) {
	// C completes first, then B, then A. Turn order must still be A, B, C.
	answer := "Use a write-ahead log for the migration."
	cDone := make(chan struct{})
	bDone := make(chan struct{})

	mkAgent := func(name string, wait <-chan struct{}, signal chan<- struct{}) *stubAgent {
		return &stubAgent{
			persona: core.Persona{Name: name, Role: "Analytical", Temperature: 0.5},
			invoke: func(ctx context.Context, _ int) (string, float64, error) {
				if wait != nil {
					select {
					case <-wait:
					case <-ctx.Done():
						return "", 0, ctx.Err()
					}
				}
				if signal != nil {
					close(signal)
				}
				return answer, 0.7, nil
			},
		}
	}
	stubs := map[string]*stubAgent{
		"A": mkAgent("A", bDone, nil),
		"B": mkAgent("B", cDone, bDone),
		"C": mkAgent("C", nil, cDone),
	}

	o := NewOrchestrator(nil, withStubs(stubs))
	session, err := o.Run(context.Background(), "Plan the migration", testPanel("A", "B", "C"), memory.NewContextWindow(0))
	if err != nil {
		t.Fatal(err)
	}

	turns := session.Turns()
	if len(turns) != 3 {
		t.Fatalf("turns = %d", len(turns))
	}
	for i, want := range []string{"A", "B", "C"} {
		if turns[i].Persona != want {
			t.Errorf("turn %d by %q, want %q", i, turns[i].Persona, want)
		}
	}
}

func TestRunExhaustsRoundCap(t *testing.T) {
	// Every agent disagrees every round; round 3 carries the decisive turn.
	stubs := map[string]*stubAgent{}
	for i, name := range []string{"A", "B", "C"} {
		seat := i
		stubs[name] = &stubAgent{
			persona: core.Persona{Name: name, Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, round int) (string, float64, error) {
				confidence := 0.5
				if seat == 1 && round == 3 {
					confidence = 0.95
				}
				return fmt.Sprintf("seat %d position %d: completely distinct argument %s",
					seat, round, strings.Repeat(fmt.Sprintf("word%d%d ", seat, round), 5)), confidence, nil
			},
		}
	}

	o := NewOrchestrator(nil, withStubs(stubs), WithMaxRounds(3))
	window := memory.NewContextWindow(0)
	session, err := o.Run(context.Background(), "Pick an approach", testPanel("A", "B", "C"), window)
	if err != nil {
		t.Fatalf("exhaustion is not an error: %v", err)
	}

	if session.State() != StateExhausted {
		t.Errorf("state = %v", session.State())
	}
	if session.Rounds() != 3 {
		t.Errorf("rounds = %d", session.Rounds())
	}
	if len(session.Turns()) != 9 {
		t.Errorf("turns = %d, want 9", len(session.Turns()))
	}

	synthesis := session.Answer()
	if synthesis == nil || synthesis.Converged {
		t.Fatalf("answer = %+v", synthesis)
	}
	if synthesis.Confidence != 0.95 || !strings.HasPrefix(synthesis.Text, "seat 1 position 3") {
		t.Errorf("best final-round turn not selected: %+v", synthesis)
	}

	// Two digests were published, one after each non-final round.
	digests := 0
	for _, entry := range window.Snapshot() {
		if entry.Role == memory.RoleRound {
			digests++
			if !strings.HasPrefix(entry.Content, "Round ") {
				t.Errorf("digest = %q", entry.Content)
			}
		}
	}
	if digests != 2 {
		t.Errorf("digests = %d, want 2", digests)
	}
}

func TestRunAbortsWhenAllAgentsFail(t *testing.T) {
	stubs := map[string]*stubAgent{}
	for _, name := range []string{"A", "B"} {
		stubs[name] = &stubAgent{
			persona: core.Persona{Name: name, Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return "", 0, errors.New(errors.CodeAgentFailure, "provider down", nil)
			},
		}
	}

	o := NewOrchestrator(nil, withStubs(stubs))
	session, err := o.Run(context.Background(), "Anything", testPanel("A", "B"), memory.NewContextWindow(0))
	if !errors.IsCode(err, errors.CodeSessionAborted) {
		t.Fatalf("expected SESSION_ABORTED, got %v", err)
	}
	if session == nil || session.State() != StateAborted {
		t.Fatalf("session = %+v", session)
	}
	if len(session.Turns()) != 0 {
		t.Errorf("no turns should be recorded, got %d", len(session.Turns()))
	}
	if session.Answer() != nil {
		t.Error("aborted session must not carry an answer")
	}
}

func TestRunAbortsOnFailureFraction(t *testing.T) {
	// 2 of 3 failing breaches the default 0.5 budget.
	stubs := map[string]*stubAgent{
		"A": {
			persona: core.Persona{Name: "A", Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return "only surviving position", 0.9, nil
			},
		},
	}
	for _, name := range []string{"B", "C"} {
		stubs[name] = &stubAgent{
			persona: core.Persona{Name: name, Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return "", 0, errors.New(errors.CodeAgentFailure, "timeout", nil)
			},
		}
	}

	o := NewOrchestrator(nil, withStubs(stubs))
	session, err := o.Run(context.Background(), "Anything", testPanel("A", "B", "C"), memory.NewContextWindow(0))
	if !errors.IsCode(err, errors.CodeSessionAborted) {
		t.Fatalf("expected SESSION_ABORTED, got %v", err)
	}
	if session.State() != StateAborted {
		t.Errorf("state = %v", session.State())
	}
}

func TestRunToleratesMinorityFailure(t *testing.T) {
	answer := "Cache the embeddings at the gateway layer."
	stubs := map[string]*stubAgent{
		"C": {
			persona: core.Persona{Name: "C", Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return "", 0, errors.New(errors.CodeAgentFailure, "flaky", nil)
			},
		},
	}
	for _, name := range []string{"A", "B"} {
		stubs[name] = &stubAgent{
			persona: core.Persona{Name: name, Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return answer, 0.8, nil
			},
		}
	}

	o := NewOrchestrator(nil, withStubs(stubs))
	session, err := o.Run(context.Background(), "Where to cache?", testPanel("A", "B", "C"), memory.NewContextWindow(0))
	if err != nil {
		t.Fatal(err)
	}
	// ceil(2/3 * 3) = 2 agreeing turns converge despite the failed seat.
	if session.State() != StateConverged {
		t.Errorf("state = %v", session.State())
	}
	if len(session.Turns()) != 2 {
		t.Errorf("turns = %d", len(session.Turns()))
	}
}

func TestRunCancellationBetweenRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	positions := map[string]string{
		"A": "scale the ingestion workers horizontally across availability zones",
		"B": "rewrite the parser as a streaming tokenizer and drop batching entirely",
	}
	stubs := map[string]*stubAgent{}
	for _, name := range []string{"A", "B"} {
		seat := name
		stubs[name] = &stubAgent{
			persona: core.Persona{Name: seat, Role: "Analytical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				// Cancel during round 1; the round still completes and its
				// turns are preserved.
				cancel()
				return positions[seat], 0.5, nil
			},
		}
	}

	o := NewOrchestrator(nil, withStubs(stubs))
	session, err := o.Run(ctx, "Anything", testPanel("A", "B"), memory.NewContextWindow(0))
	if !errors.IsCode(err, errors.CodeSessionAborted) {
		t.Fatalf("expected SESSION_ABORTED, got %v", err)
	}
	if session.State() != StateAborted {
		t.Errorf("state = %v", session.State())
	}
	if session.Rounds() != 1 || len(session.Turns()) != 2 {
		t.Errorf("partial transcript lost: rounds=%d turns=%d", session.Rounds(), len(session.Turns()))
	}
}

func TestRunSingleSeatPanel(t *testing.T) {
	stubs := map[string]*stubAgent{
		"Solo": {
			persona: core.Persona{Name: "Solo", Role: "Practical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return "ship it", 0.6, nil
			},
		},
	}
	o := NewOrchestrator(nil, withStubs(stubs))
	session, err := o.Run(context.Background(), "Ship?", testPanel("Solo"), memory.NewContextWindow(0))
	if err != nil {
		t.Fatal(err)
	}
	if session.State() != StateConverged || session.Rounds() != 1 {
		t.Errorf("single seat should converge immediately: state=%v rounds=%d", session.State(), session.Rounds())
	}
}

func TestRunPinsTaskOnce(t *testing.T) {
	stubs := map[string]*stubAgent{
		"Solo": {
			persona: core.Persona{Name: "Solo", Role: "Practical", Temperature: 0.5},
			invoke: func(_ context.Context, _ int) (string, float64, error) {
				return "done", 0.6, nil
			},
		},
	}
	o := NewOrchestrator(nil, withStubs(stubs))

	window := memory.NewContextWindow(0)
	window.AppendPinned(memory.RoleTask, "existing task")
	if _, err := o.Run(context.Background(), "new task", testPanel("Solo"), window); err != nil {
		t.Fatal(err)
	}
	if got := window.TaskStatement(); got != "existing task" {
		t.Errorf("existing pinned task must not be replaced, got %q", got)
	}

	fresh := memory.NewContextWindow(0)
	if _, err := o.Run(context.Background(), "new task", testPanel("Solo"), fresh); err != nil {
		t.Fatal(err)
	}
	if got := fresh.TaskStatement(); got != "new task" {
		t.Errorf("task not pinned, got %q", got)
	}
}

func TestConvergedClusterQuorum(t *testing.T) {
	o := NewOrchestrator(nil, WithQuorum(2.0/3.0), WithSimilarityThreshold(0.8))

	agree := "increase the connection pool size to 50"
	turns := []AgentTurn{
		{ID: "1", Text: agree, Confidence: 0.6},
		{ID: "2", Text: agree, Confidence: 0.7},
		{ID: "3", Text: "rewrite the storage layer in a different way entirely", Confidence: 0.9},
	}
	cluster := o.convergedCluster(turns, 3)
	if len(cluster) != 2 {
		t.Fatalf("cluster = %d turns", len(cluster))
	}

	// Two agreeing seats out of five is below ceil(2/3*5)=4.
	if cluster := o.convergedCluster(turns, 5); cluster != nil {
		t.Errorf("expected no convergence at panel size 5, got %d turns", len(cluster))
	}
}

func TestBestTurnTieBreak(t *testing.T) {
	turns := []AgentTurn{
		{ID: "first", Confidence: 0.7},
		{ID: "second", Confidence: 0.7},
	}
	if got := bestTurn(turns); got.ID != "first" {
		t.Errorf("ties break toward registration order, got %q", got.ID)
	}
}
