// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics tracks the certainty/grounding/roundtable pipeline for
// production monitoring.
type PipelineMetrics struct {
	// certaintyScore records the distribution of certainty scores.
	certaintyScore metric.Float64Histogram

	// groundingOutcomes counts grounding results by outcome
	// (improved, no_improvement, clarification_required).
	groundingOutcomes metric.Int64Counter

	// roundtableRounds records rounds-to-termination per session.
	roundtableRounds metric.Int64Histogram

	// sessionOutcomes counts terminal session states.
	sessionOutcomes metric.Int64Counter

	// agentFailures counts per-round agent invocation failures.
	agentFailures metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline metric instruments.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter("focus/pipeline")

	certaintyScore, err := meter.Float64Histogram(
		"focus.certainty.score",
		metric.WithDescription("Distribution of certainty scores"),
	)
	if err != nil {
		return nil, err
	}

	groundingOutcomes, err := meter.Int64Counter(
		"focus.grounding.outcomes",
		metric.WithDescription("Grounding attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	roundtableRounds, err := meter.Int64Histogram(
		"focus.roundtable.rounds",
		metric.WithDescription("Rounds executed per roundtable session"),
	)
	if err != nil {
		return nil, err
	}

	sessionOutcomes, err := meter.Int64Counter(
		"focus.roundtable.sessions",
		metric.WithDescription("Roundtable sessions by terminal state"),
	)
	if err != nil {
		return nil, err
	}

	agentFailures, err := meter.Int64Counter(
		"focus.roundtable.agent_failures",
		metric.WithDescription("Agent invocation failures within rounds"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		certaintyScore:    certaintyScore,
		groundingOutcomes: groundingOutcomes,
		roundtableRounds:  roundtableRounds,
		sessionOutcomes:   sessionOutcomes,
		agentFailures:     agentFailures,
	}, nil
}

// RecordCertaintyScore records a certainty score with its degraded flag.
func (m *PipelineMetrics) RecordCertaintyScore(ctx context.Context, score float64, degraded bool) {
	if m == nil {
		return
	}
	m.certaintyScore.Record(ctx, score, metric.WithAttributes(
		attribute.Bool("degraded", degraded),
	))
}

// RecordGroundingOutcome records a grounding attempt result.
func (m *PipelineMetrics) RecordGroundingOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.groundingOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordSession records a terminated roundtable session.
func (m *PipelineMetrics) RecordSession(ctx context.Context, state string, rounds int) {
	if m == nil {
		return
	}
	m.roundtableRounds.Record(ctx, int64(rounds), metric.WithAttributes(
		attribute.String("state", state),
	))
	m.sessionOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
	))
}

// RecordAgentFailure records a failed agent invocation.
func (m *PipelineMetrics) RecordAgentFailure(ctx context.Context, persona string) {
	if m == nil {
		return
	}
	m.agentFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("persona", persona),
	))
}
