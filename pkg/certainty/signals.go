// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package certainty

import (
	"math"
	"strings"

	"github.com/focusai/focus/pkg/memory"
)

// Local signal computation. Everything here is pure text analysis over the
// prompt and the window snapshot; no external calls, fully deterministic.

var vagueTerms = []string{"thing", "stuff", "something", "whatever", "maybe", "probably"}

var specificTerms = []string{"specifically", "exactly", "precisely", "particularly"}

var vagueQuantifiers = []string{"some", "a few", "several", "many", "most", "a lot", "a bit", "soon"}

// openingPronouns flag an ambiguous referent when they appear among the
// first tokens of a prompt with nothing in the prompt itself to bind them.
var openingPronouns = map[string]bool{
	"it": true, "this": true, "that": true,
	"they": true, "them": true, "these": true, "those": true,
}

var goalMarkers = []string{
	"explain", "describe", "summarize", "list", "write", "create", "build",
	"fix", "compare", "analyze", "generate", "translate", "implement",
	"improve", "show", "give", "find", "calculate", "make", "tell", "help",
	"what", "how", "why", "when", "which", "who", "where",
}

const (
	optimalSentenceMin = 15.0
	optimalSentenceMax = 20.0
	optimalSentenceMid = 17.5

	briefThreshold     = 10
	verboseThreshold   = 1000
	maxFocusedQueries  = 3
	deficiencyPenalty  = 0.05
	lowRelevanceCutoff = 0.2
)

// clarity scores sentence structure: prompts averaging 15-20 words per
// sentence score 1.0, with linear falloff either side.
func clarity(text string) float64 {
	var lengths []int
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if words := len(strings.Fields(s)); words > 0 {
			lengths = append(lengths, words)
		}
	}
	if len(lengths) == 0 {
		return 0
	}
	total := 0
	for _, n := range lengths {
		total += n
	}
	avg := float64(total) / float64(len(lengths))
	if avg >= optimalSentenceMin && avg <= optimalSentenceMax {
		return 1.0
	}
	return math.Max(0, 1-math.Abs(avg-optimalSentenceMid)/optimalSentenceMid)
}

// specificity starts at 1.0 and is pulled down by vague terms and up by
// explicit specificity markers.
func specificity(text string) float64 {
	lower := strings.ToLower(text)
	score := 1.0
	for _, term := range vagueTerms {
		if strings.Contains(lower, term) {
			score -= 0.15
		}
	}
	for _, term := range specificTerms {
		if strings.Contains(lower, term) {
			score += 0.1
		}
	}
	return clamp01(score)
}

// contextRelevance is the maximum term-frequency cosine similarity between
// the prompt and any window entry. An empty window yields 1.0: with nothing
// to relate to, relevance is not a deficiency.
func contextRelevance(text string, entries []memory.Entry) float64 {
	if len(entries) == 0 {
		return 1.0
	}
	promptVec := termFrequencies(text)
	if len(promptVec) == 0 {
		return 0
	}
	best := 0.0
	for _, entry := range entries {
		if sim := cosine(promptVec, termFrequencies(entry.Content)); sim > best {
			best = sim
		}
	}
	return best
}

func termFrequencies(text string) map[string]float64 {
	freqs := make(map[string]float64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if word != "" {
			freqs[word]++
		}
	}
	return freqs
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, weight := range a {
		dot += weight * b[term]
		normA += weight * weight
	}
	for _, weight := range b {
		normB += weight * weight
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// detectDeficiencies returns the closed-set flags in fixed detection order.
func detectDeficiencies(text string, entries []memory.Entry, relevance float64) []Deficiency {
	var flags []Deficiency
	lower := strings.ToLower(text)
	tokens := strings.Fields(lower)

	if hasAmbiguousReferent(tokens) {
		flags = append(flags, DeficiencyAmbiguousReferent)
	}
	if missingContext(lower, entries, relevance) {
		flags = append(flags, DeficiencyMissingContext)
	}
	if !hasGoalMarker(tokens) {
		flags = append(flags, DeficiencyUnderspecifiedGoal)
	}
	if hasVagueQuantifier(lower, tokens) {
		flags = append(flags, DeficiencyVagueQuantifier)
	}
	if len(text) < briefThreshold {
		flags = append(flags, DeficiencyTooBrief)
	}
	if strings.Count(text, "?") > maxFocusedQueries || len(text) > verboseThreshold {
		flags = append(flags, DeficiencyUnfocused)
	}
	return flags
}

// hasAmbiguousReferent checks whether one of the first three tokens is a
// bare pronoun. Pronouns deeper in the prompt usually have an in-prompt
// antecedent and are not flagged.
func hasAmbiguousReferent(tokens []string) bool {
	limit := 3
	if len(tokens) < limit {
		limit = len(tokens)
	}
	for i := 0; i < limit; i++ {
		if openingPronouns[strings.Trim(tokens[i], ".,;:!?")] {
			return true
		}
	}
	return false
}

var continuationPhrases = []string{
	"the above", "as before", "as discussed", "as mentioned",
	"the previous", "that approach", "the same",
}

func missingContext(lower string, entries []memory.Entry, relevance float64) bool {
	for _, phrase := range continuationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return len(entries) > 0 && relevance < lowRelevanceCutoff
}

func hasGoalMarker(tokens []string) bool {
	for _, token := range tokens {
		token = strings.Trim(token, ".,;:!?")
		for _, marker := range goalMarkers {
			if token == marker {
				return true
			}
		}
	}
	return false
}

func hasVagueQuantifier(lower string, tokens []string) bool {
	for _, q := range vagueQuantifiers {
		if strings.Contains(q, " ") {
			if strings.Contains(lower, q) {
				return true
			}
			continue
		}
		for _, token := range tokens {
			if strings.Trim(token, ".,;:!?") == q {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
