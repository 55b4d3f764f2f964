// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package roundtable

import (
	"fmt"
	"math"
	"strings"
)

// Similarity compares two free-text turns and returns agreement in [0,1].
// The convergence check treats this as an injected strategy so deployments
// can swap in embedding-based comparison without touching the orchestrator.
type Similarity interface {
	Name() string
	Compare(a, b string) float64
}

// SimilarityFor returns the named built-in strategy.
func SimilarityFor(name string) (Similarity, error) {
	switch name {
	case "", TokenOverlap{}.Name():
		return TokenOverlap{}, nil
	case Jaccard{}.Name():
		return Jaccard{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity strategy %q", name)
	}
}

// TokenOverlap is term-frequency cosine similarity over lowercased tokens.
// The default strategy.
type TokenOverlap struct{}

func (TokenOverlap) Name() string { return "token_overlap" }

func (TokenOverlap) Compare(a, b string) float64 {
	va, vb := tokenFreqs(a), tokenFreqs(b)
	var dot, normA, normB float64
	for term, weight := range va {
		dot += weight * vb[term]
		normA += weight * weight
	}
	for _, weight := range vb {
		normB += weight * weight
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Jaccard is set overlap over unique tokens.
type Jaccard struct{}

func (Jaccard) Name() string { return "jaccard" }

func (Jaccard) Compare(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenFreqs(text string) map[string]float64 {
	freqs := make(map[string]float64)
	for _, token := range tokenize(text) {
		freqs[token]++
	}
	return freqs
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range tokenize(text) {
		set[token] = true
	}
	return set
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, field := range fields {
		field = strings.Trim(field, ".,;:!?\"'()[]")
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}
