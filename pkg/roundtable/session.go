// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package roundtable runs a panel of persona-bound agents through bounded
// debate rounds until they converge on an answer, run out of rounds, or
// fail as a group.
package roundtable

import (
	"sync"
	"time"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/memory"
	"github.com/google/uuid"
)

// State is the roundtable session lifecycle state.
type State string

const (
	StateForming         State = "forming"
	StateRoundInProgress State = "round_in_progress"
	StateAggregating     State = "aggregating"
	StateConverged       State = "converged"
	StateExhausted       State = "exhausted"
	StateAborted         State = "aborted"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateExhausted || s == StateAborted
}

// AgentTurn is one persona's output for one round. Immutable once recorded.
type AgentTurn struct {
	ID         string    `json:"id"`
	Persona    string    `json:"persona"`
	Round      int       `json:"round"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	RespondsTo []string  `json:"responds_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Synthesis is the final answer of a session.
type Synthesis struct {
	Text        string   `json:"text"`
	Converged   bool     `json:"converged"`
	Confidence  float64  `json:"confidence"`
	SourceTurns []string `json:"source_turns,omitempty"`
}

// Session is a running or finished roundtable. The orchestrator owns all
// mutation; other goroutines observe progress through Snapshot.
type Session struct {
	mu        sync.RWMutex
	id        string
	task      string
	personas  []core.Persona
	turns     []AgentTurn
	state     State
	rounds    int
	answer    *Synthesis
	createdAt time.Time
}

// SessionSnapshot is a consistent read-only view of a session.
type SessionSnapshot struct {
	ID        string         `json:"id"`
	Task      string         `json:"task"`
	State     State          `json:"state"`
	Rounds    int            `json:"rounds"`
	Personas  []core.Persona `json:"personas"`
	Turns     []AgentTurn    `json:"turns"`
	Answer    *Synthesis     `json:"answer,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func newSession(task string, personas []core.Persona) *Session {
	ordered := make([]core.Persona, len(personas))
	copy(ordered, personas)
	return &Session{
		id:        uuid.NewString(),
		task:      task,
		personas:  ordered,
		state:     StateForming,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Task returns the session task statement.
func (s *Session) Task() string { return s.task }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Rounds returns the number of completed rounds.
func (s *Session) Rounds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rounds
}

// Turns returns the recorded turns in canonical order.
func (s *Session) Turns() []AgentTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Answer returns the synthesized answer, nil until terminal success or
// exhaustion.
func (s *Session) Answer() *Synthesis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answer
}

// Converged reports whether the session reached consensus.
func (s *Session) Converged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answer != nil && s.answer.Converged
}

// Snapshot returns a consistent view for live progress display.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := SessionSnapshot{
		ID:        s.id,
		Task:      s.task,
		State:     s.state,
		Rounds:    s.rounds,
		Personas:  make([]core.Persona, len(s.personas)),
		Turns:     make([]AgentTurn, len(s.turns)),
		CreatedAt: s.createdAt,
	}
	copy(snap.Personas, s.personas)
	copy(snap.Turns, s.turns)
	if s.answer != nil {
		answer := *s.answer
		snap.Answer = &answer
	}
	return snap
}

// Record converts the session into its durable transcript form.
func (s *Session) Record() memory.SessionRecord {
	snap := s.Snapshot()
	rec := memory.SessionRecord{
		ID:        snap.ID,
		Task:      snap.Task,
		State:     string(snap.State),
		Personas:  snap.Personas,
		CreatedAt: snap.CreatedAt,
	}
	if snap.Answer != nil {
		rec.Answer = snap.Answer.Text
		rec.Converged = snap.Answer.Converged
	}
	for _, turn := range snap.Turns {
		rec.Turns = append(rec.Turns, memory.TurnRecord{
			ID:         turn.ID,
			Persona:    turn.Persona,
			Round:      turn.Round,
			Text:       turn.Text,
			Confidence: turn.Confidence,
			RespondsTo: turn.RespondsTo,
			CreatedAt:  turn.CreatedAt,
		})
	}
	return rec
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) appendRound(turns []AgentTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
	s.rounds++
}

func (s *Session) setAnswer(answer *Synthesis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = answer
}
