// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package certainty scores how well-specified a prompt is before it reaches
// a model. Scores combine local lexical signals with an optional
// model-based answerability estimate.
package certainty

import (
	"fmt"
	"strings"
)

// Deficiency names a specific, closed-set shortcoming of a prompt. Each
// deficiency maps to one grounding strategy.
type Deficiency string

const (
	// DeficiencyMissingContext: the prompt refers to prior material the
	// window does not contain or relate to.
	DeficiencyMissingContext Deficiency = "missing_context"

	// DeficiencyAmbiguousReferent: an unresolved pronoun opens the prompt.
	DeficiencyAmbiguousReferent Deficiency = "ambiguous_referent"

	// DeficiencyUnderspecifiedGoal: no recognizable task verb or question.
	DeficiencyUnderspecifiedGoal Deficiency = "underspecified_goal"

	// DeficiencyVagueQuantifier: quantity words with no concrete range.
	DeficiencyVagueQuantifier Deficiency = "vague_quantifier"

	// DeficiencyTooBrief: too short to carry enough signal.
	DeficiencyTooBrief Deficiency = "too_brief"

	// DeficiencyUnfocused: too many questions or too much text at once.
	DeficiencyUnfocused Deficiency = "unfocused"
)

// Score is the certainty assessment of one prompt against one window
// snapshot. Produced once per prompt; superseded, never mutated, after
// grounding.
type Score struct {
	// Value is the combined certainty in [0,1].
	Value float64 `json:"value"`

	// Component signals, each in [0,1].
	Clarity          float64 `json:"clarity"`
	Specificity      float64 `json:"specificity"`
	ContextRelevance float64 `json:"context_relevance"`

	// ModelSignal is the optional model-based answerability estimate.
	// Nil when the signal is disabled or unavailable.
	ModelSignal *float64 `json:"model_signal,omitempty"`

	// Deficiencies lists detected shortcomings, in detection order.
	Deficiencies []Deficiency `json:"deficiencies,omitempty"`

	// Degraded is set when the model signal was requested but unavailable,
	// so the score rests on local signals alone.
	Degraded bool `json:"degraded,omitempty"`

	// Recommendation is a human-readable next step.
	Recommendation string `json:"recommendation"`
}

// Has reports whether the score carries the given deficiency.
func (s *Score) Has(d Deficiency) bool {
	for _, flag := range s.Deficiencies {
		if flag == d {
			return true
		}
	}
	return false
}

func recommendation(value float64, deficiencies []Deficiency) string {
	switch {
	case value > 0.8:
		return "High certainty - proceed with response"
	case value > 0.5:
		return "Moderate certainty - consider clarifying specific aspects"
	default:
		names := make([]string, len(deficiencies))
		for i, d := range deficiencies {
			names[i] = string(d)
		}
		if len(names) == 0 {
			return "Low certainty - recommend rephrasing the request"
		}
		return fmt.Sprintf("Low certainty - recommend addressing: %s", strings.Join(names, ", "))
	}
}
