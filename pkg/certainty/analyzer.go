// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package certainty

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/gateway"
	"github.com/focusai/focus/pkg/memory"
	"github.com/focusai/focus/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultThreshold is the certainty cutoff below which grounding triggers.
const DefaultThreshold = 0.6

const modelSignalPrompt = "On a scale from 0.0 to 1.0, rate how answerable the following request is exactly as stated, where 1.0 means fully specified and 0.0 means impossible to answer without more information. Reply with only the number.\n\nRequest: "

// Analyzer scores prompts. It is stateless with respect to the pipeline:
// given the same prompt text and window contents it returns the same score,
// which also backs the internal cache.
type Analyzer struct {
	gw          gateway.Gateway
	modelSignal bool
	threshold   float64
	metrics     *telemetry.PipelineMetrics
	emitter     core.EventEmitter
	logger      *slog.Logger
	tracer      trace.Tracer

	mu    sync.Mutex
	cache map[string]Score
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithGateway enables the model-based answerability signal through gw.
func WithGateway(gw gateway.Gateway) AnalyzerOption {
	return func(a *Analyzer) {
		a.gw = gw
		a.modelSignal = true
	}
}

// WithThreshold overrides the grounding threshold.
func WithThreshold(threshold float64) AnalyzerOption {
	return func(a *Analyzer) {
		if threshold > 0 {
			a.threshold = threshold
		}
	}
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *telemetry.PipelineMetrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// WithEmitter attaches a semantic event emitter.
func WithEmitter(e core.EventEmitter) AnalyzerOption {
	return func(a *Analyzer) { a.emitter = e }
}

// WithLogger sets the analyzer logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer creates an Analyzer. Without WithGateway the analyzer runs on
// local signals only.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		threshold: DefaultThreshold,
		emitter:   core.NoopEventEmitter{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("focus/certainty"),
		cache:     make(map[string]Score),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the grounding threshold.
func (a *Analyzer) Threshold() float64 { return a.threshold }

// NeedsGrounding reports whether the score falls below the threshold.
func (a *Analyzer) NeedsGrounding(score *Score) bool {
	return score.Value < a.threshold
}

// Analyze scores the prompt against the window snapshot. The local signals
// are deterministic; when the model signal is enabled and the provider
// fails, the score is computed from local signals alone and marked Degraded.
// Analyze never fails on provider errors.
func (a *Analyzer) Analyze(ctx context.Context, prompt core.Prompt, window *memory.ContextWindow) (*Score, error) {
	if strings.TrimSpace(prompt.Text) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "prompt text is empty", nil)
	}

	ctx, span := a.tracer.Start(ctx, "Certainty.Analyze")
	defer span.End()

	key := cacheKey(prompt.Text, window)
	if cached, ok := a.cached(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	entries := window.Snapshot()
	score := a.analyzeLocal(prompt.Text, entries)

	if a.modelSignal && a.gw != nil {
		if signal, err := a.modelAnswerability(ctx, prompt.Text); err != nil {
			a.logger.WarnContext(ctx, "model signal unavailable, using local signals only",
				slog.String("error", err.Error()),
			)
			score.Degraded = true
		} else {
			score.ModelSignal = &signal
			blended := (composite(score) + signal) / 2
			score.Value = clamp01(blended - deficiencyPenalty*float64(len(score.Deficiencies)))
			score.Recommendation = recommendation(score.Value, score.Deficiencies)
		}
	}

	span.SetAttributes(
		attribute.Float64("certainty.value", score.Value),
		attribute.Int("certainty.deficiencies", len(score.Deficiencies)),
		attribute.Bool("certainty.degraded", score.Degraded),
	)
	a.metrics.RecordCertaintyScore(ctx, score.Value, score.Degraded)
	sessionID, _ := core.SessionID(ctx)
	a.emitter.Emit(ctx, core.NewEvent(core.EventCertaintyScored, sessionID, map[string]any{
		"prompt_id": prompt.ID,
		"value":     score.Value,
	}))

	// Only fully local scores are cached: the model signal is not
	// guaranteed deterministic.
	if score.ModelSignal == nil && !score.Degraded {
		a.store(key, *score)
	}
	return score, nil
}

func (a *Analyzer) analyzeLocal(text string, entries []memory.Entry) *Score {
	score := &Score{
		Clarity:          clarity(text),
		Specificity:      specificity(text),
		ContextRelevance: contextRelevance(text, entries),
	}
	score.Deficiencies = detectDeficiencies(text, entries, score.ContextRelevance)
	score.Value = clamp01(composite(score) - deficiencyPenalty*float64(len(score.Deficiencies)))
	score.Recommendation = recommendation(score.Value, score.Deficiencies)
	return score
}

func composite(s *Score) float64 {
	return (s.Clarity + s.Specificity + s.ContextRelevance) / 3
}

func (a *Analyzer) modelAnswerability(ctx context.Context, text string) (float64, error) {
	result, err := a.gw.Generate(ctx, gateway.GenerateRequest{
		Prompt: modelSignalPrompt + text,
	})
	if err != nil {
		return 0, err
	}
	signal, ok := parseSignal(result.Text)
	if !ok {
		return 0, errors.New(errors.CodeProviderFailure,
			"model signal response did not contain a number", nil)
	}
	return signal, nil
}

// parseSignal extracts the first float in [0,1] from a model reply.
func parseSignal(text string) (float64, bool) {
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, ".,;:!?\"'()")
		if v, err := strconv.ParseFloat(field, 64); err == nil && v >= 0 && v <= 1 {
			return v, true
		}
	}
	return 0, false
}

func cacheKey(text string, window *memory.ContextWindow) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(window.Render()))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Analyzer) cached(key string) (Score, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	score, ok := a.cache[key]
	return score, ok
}

func (a *Analyzer) store(key string, score Score) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[key] = score
}
