// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package roundtable

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/gateway"
	"github.com/focusai/focus/pkg/memory"
	"github.com/focusai/focus/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxRounds caps debate length.
	DefaultMaxRounds = 3

	// DefaultQuorum is the fraction of the panel that must agree.
	DefaultQuorum = 2.0 / 3.0

	// DefaultSimilarityThreshold is the agreement cutoff for one pair of turns.
	DefaultSimilarityThreshold = 0.8

	// DefaultAgentTimeout bounds a single agent invocation.
	DefaultAgentTimeout = 30 * time.Second

	// DefaultMaxFailureFraction aborts the session when more than this
	// fraction of a round's invocations fail.
	DefaultMaxFailureFraction = 0.5
)

// AgentFactory builds the Agent for a persona. The default binds personas
// to the gateway via PanelAgent; tests substitute deterministic agents.
type AgentFactory func(core.Persona) Agent

// Orchestrator schedules a panel of agents through bounded rounds.
type Orchestrator struct {
	gw                 gateway.Gateway
	similarity         Similarity
	maxRounds          int
	quorum             float64
	simThreshold       float64
	agentTimeout       time.Duration
	maxFailureFraction float64
	factory            AgentFactory
	metrics            *telemetry.PipelineMetrics
	emitter            core.EventEmitter
	logger             *slog.Logger
	tracer             trace.Tracer
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxRounds sets the hard round cap.
func WithMaxRounds(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithQuorum sets the agreeing fraction required for convergence.
func WithQuorum(fraction float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if fraction > 0 && fraction <= 1 {
			o.quorum = fraction
		}
	}
}

// WithSimilarity sets the turn comparison strategy.
func WithSimilarity(s Similarity) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.similarity = s
		}
	}
}

// WithSimilarityThreshold sets the pairwise agreement cutoff.
func WithSimilarityThreshold(t float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if t > 0 && t <= 1 {
			o.simThreshold = t
		}
	}
}

// WithAgentTimeout bounds each agent invocation. Zero disables the bound.
func WithAgentTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.agentTimeout = d }
}

// WithMaxFailureFraction sets the per-round failure budget.
func WithMaxFailureFraction(fraction float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if fraction >= 0 && fraction < 1 {
			o.maxFailureFraction = fraction
		}
	}
}

// WithAgentFactory overrides agent construction.
func WithAgentFactory(factory AgentFactory) OrchestratorOption {
	return func(o *Orchestrator) {
		if factory != nil {
			o.factory = factory
		}
	}
}

// WithOrchestratorMetrics attaches pipeline metrics.
func WithOrchestratorMetrics(m *telemetry.PipelineMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithOrchestratorEmitter attaches a semantic event emitter.
func WithOrchestratorEmitter(e core.EventEmitter) OrchestratorOption {
	return func(o *Orchestrator) { o.emitter = e }
}

// WithOrchestratorLogger sets the orchestrator logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates an Orchestrator over the gateway.
func NewOrchestrator(gw gateway.Gateway, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		gw:                 gw,
		similarity:         TokenOverlap{},
		maxRounds:          DefaultMaxRounds,
		quorum:             DefaultQuorum,
		simThreshold:       DefaultSimilarityThreshold,
		agentTimeout:       DefaultAgentTimeout,
		maxFailureFraction: DefaultMaxFailureFraction,
		emitter:            core.NoopEventEmitter{},
		logger:             slog.Default(),
		tracer:             otel.Tracer("focus/roundtable"),
	}
	o.factory = func(p core.Persona) Agent { return NewPanelAgent(p, o.gw) }
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type invocation struct {
	turn AgentTurn
	err  error
}

// Run executes a full session to completion. Rounds run strictly
// sequentially; agents within a round run concurrently against the same
// window snapshot and never see each other's turns until the next round.
//
// A session that exhausts its round cap returns with a best-effort answer
// and a nil error. Panel-wide failure and cancellation return the session
// (partial transcript preserved) together with a SESSION_ABORTED error.
func (o *Orchestrator) Run(ctx context.Context, task string, personas []core.Persona, window *memory.ContextWindow) (*Session, error) {
	if strings.TrimSpace(task) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "task is required", nil)
	}
	if len(personas) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "at least one persona is required", nil)
	}
	for _, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, errors.New(errors.CodeInvalidInput, "invalid persona", err).
				WithContext("persona", p.Name)
		}
	}

	session := newSession(task, personas)
	ctx = core.WithSessionID(ctx, session.id)
	ctx, span := o.tracer.Start(ctx, "Roundtable.Run", trace.WithAttributes(
		attribute.String("session.id", session.id),
		attribute.Int("panel.size", len(personas)),
	))
	defer span.End()

	if window.TaskStatement() == "" {
		window.AppendPinned(memory.RoleTask, task)
	}

	agents := make([]Agent, len(personas))
	for i, p := range personas {
		agents[i] = o.factory(p)
	}

	var priorTurnIDs []string
	for round := 1; round <= o.maxRounds; round++ {
		// Cancellation is honored between rounds, never mid-round.
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, span, session, "session canceled", err)
		}

		session.setState(StateRoundInProgress)
		o.emitter.Emit(ctx, core.NewEvent(core.EventRoundStarted, session.id, map[string]any{
			"round": round,
		}))

		turns, failures := o.runRound(ctx, agents, task, window.Snapshot(), round, priorTurnIDs)

		if len(turns) == 0 {
			return o.abort(ctx, span, session,
				fmt.Sprintf("all %d agents failed in round %d", len(agents), round), nil)
		}
		if fraction := float64(failures) / float64(len(agents)); fraction > o.maxFailureFraction {
			return o.abort(ctx, span, session,
				fmt.Sprintf("%d of %d agents failed in round %d", failures, len(agents), round), nil)
		}

		session.appendRound(turns)
		session.setState(StateAggregating)
		o.emitter.Emit(ctx, core.NewEvent(core.EventRoundCompleted, session.id, map[string]any{
			"round":    round,
			"turns":    len(turns),
			"failures": failures,
		}))

		if cluster := o.convergedCluster(turns, len(personas)); cluster != nil {
			answer := synthesize(cluster, true)
			session.setAnswer(answer)
			session.setState(StateConverged)
			span.SetAttributes(attribute.Int("session.rounds", round), attribute.String("session.state", string(StateConverged)))
			o.metrics.RecordSession(ctx, string(StateConverged), round)
			o.emitter.Emit(ctx, core.NewEvent(core.EventSessionConverged, session.id, map[string]any{
				"rounds": round,
			}))
			return session, nil
		}

		// The next round builds on this one: publish a digest to the shared
		// window. The window is only mutated here, between rounds.
		if round < o.maxRounds {
			window.Append(memory.RoleRound, roundDigest(round, turns))
		}
		priorTurnIDs = turnIDs(turns)
	}

	// Round cap reached without convergence.
	finalRound := lastRoundTurns(session.Turns())
	answer := synthesize([]AgentTurn{bestTurn(finalRound)}, false)
	session.setAnswer(answer)
	session.setState(StateExhausted)
	span.SetAttributes(attribute.Int("session.rounds", o.maxRounds), attribute.String("session.state", string(StateExhausted)))
	o.metrics.RecordSession(ctx, string(StateExhausted), o.maxRounds)
	o.emitter.Emit(ctx, core.NewEvent(core.EventSessionExhausted, session.id, map[string]any{
		"rounds": o.maxRounds,
	}))
	return session, nil
}

// runRound fans all agents out concurrently and waits for every invocation
// to settle. Successful turns are returned in persona registration order
// regardless of completion order.
func (o *Orchestrator) runRound(ctx context.Context, agents []Agent, task string, snapshot []memory.Entry, round int, priorTurnIDs []string) ([]AgentTurn, int) {
	results := make([]invocation, len(agents))
	var wg sync.WaitGroup
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent Agent) {
			defer wg.Done()
			invokeCtx := ctx
			if o.agentTimeout > 0 {
				var cancel context.CancelFunc
				invokeCtx, cancel = context.WithTimeout(ctx, o.agentTimeout)
				defer cancel()
			}
			turn, err := agent.Invoke(invokeCtx, task, snapshot, round, priorTurnIDs)
			results[i] = invocation{turn: turn, err: err}
		}(i, agent)
	}
	wg.Wait()

	turns := make([]AgentTurn, 0, len(agents))
	failures := 0
	for i, result := range results {
		if result.err != nil {
			failures++
			persona := agents[i].Persona().Name
			o.logger.WarnContext(ctx, "agent invocation failed",
				slog.String("persona", persona),
				slog.Int("round", round),
				slog.String("error", result.err.Error()),
			)
			o.metrics.RecordAgentFailure(ctx, persona)
			sessionID, _ := core.SessionID(ctx)
			o.emitter.Emit(ctx, core.NewEvent(core.EventAgentFailed, sessionID, map[string]any{
				"persona": persona,
				"round":   round,
			}))
			continue
		}
		turns = append(turns, result.turn)
	}
	return turns, failures
}

// convergedCluster returns the agreeing turns when a quorum of the panel
// agrees within the similarity threshold, or when the panel has a single
// seat. Nil means no convergence this round.
func (o *Orchestrator) convergedCluster(turns []AgentTurn, panelSize int) []AgentTurn {
	if panelSize == 1 && len(turns) == 1 {
		return turns
	}

	quorumCount := int(math.Ceil(o.quorum*float64(panelSize) - 1e-9))
	if quorumCount < 2 {
		quorumCount = 2
	}

	var best []AgentTurn
	for i := range turns {
		cluster := []AgentTurn{turns[i]}
		for j := range turns {
			if i == j {
				continue
			}
			if o.similarity.Compare(turns[i].Text, turns[j].Text) >= o.simThreshold {
				cluster = append(cluster, turns[j])
			}
		}
		if len(cluster) >= quorumCount && len(cluster) > len(best) {
			best = cluster
		}
	}
	return best
}

// synthesize merges agreeing turns deterministically: the highest-confidence
// turn is taken verbatim (earliest registration order breaks ties), and the
// remaining cluster members are cited as sources.
func synthesize(cluster []AgentTurn, converged bool) *Synthesis {
	best := bestTurn(cluster)
	answer := &Synthesis{
		Text:       best.Text,
		Converged:  converged,
		Confidence: best.Confidence,
	}
	for _, turn := range cluster {
		answer.SourceTurns = append(answer.SourceTurns, turn.ID)
	}
	return answer
}

func bestTurn(turns []AgentTurn) AgentTurn {
	best := turns[0]
	for _, turn := range turns[1:] {
		if turn.Confidence > best.Confidence {
			best = turn
		}
	}
	return best
}

func lastRoundTurns(turns []AgentTurn) []AgentTurn {
	if len(turns) == 0 {
		return nil
	}
	finalRound := turns[len(turns)-1].Round
	var out []AgentTurn
	for _, turn := range turns {
		if turn.Round == finalRound {
			out = append(out, turn)
		}
	}
	return out
}

func turnIDs(turns []AgentTurn) []string {
	ids := make([]string, len(turns))
	for i, turn := range turns {
		ids[i] = turn.ID
	}
	return ids
}

func roundDigest(round int, turns []AgentTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d responses:\n", round)
	for _, turn := range turns {
		fmt.Fprintf(&b, "- %s (%.2f): %s\n", turn.Persona, turn.Confidence, firstLine(turn.Text))
	}
	return b.String()
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	const maxDigestLine = 200
	if len(text) > maxDigestLine {
		text = text[:maxDigestLine]
	}
	return strings.TrimSpace(text)
}

func (o *Orchestrator) abort(ctx context.Context, span trace.Span, session *Session, msg string, cause error) (*Session, error) {
	session.setState(StateAborted)
	span.SetAttributes(attribute.String("session.state", string(StateAborted)))
	o.metrics.RecordSession(ctx, string(StateAborted), session.Rounds())
	o.emitter.Emit(ctx, core.NewEvent(core.EventSessionAborted, session.id, map[string]any{
		"reason": msg,
	}))
	return session, errors.New(errors.CodeSessionAborted, msg, cause).
		WithContext("session_id", session.id).
		WithContext("recorded_turns", len(session.Turns()))
}
