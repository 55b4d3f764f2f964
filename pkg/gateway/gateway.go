// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the capability gateway: the single narrow
// interface through which the pipeline reaches a text-generation provider
// and its tools. Provider identity, authentication and rate limiting live
// behind the llm.Provider it wraps.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
	"github.com/focusai/focus/pkg/llm"
	"github.com/focusai/focus/pkg/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Constraints carries persona-level behavioral constraints into a call.
// AllowedTools is the capability subset: Generate advertises exactly these
// registered tools to the provider, so a persona can only be asked to use
// what it is permitted to use. Empty means no tools are offered.
type Constraints struct {
	SystemPrompt string
	Temperature  float64
	AllowedTools []string
}

// GenerateRequest is the input for a text generation call.
type GenerateRequest struct {
	Prompt      string
	Constraints Constraints
	// Context is prior conversation content, oldest first.
	Context []llm.Message
	// Model overrides the gateway default when set.
	Model string
}

// GenerateResult is the output of a successful generation call.
type GenerateResult struct {
	Text  string
	Usage llm.Usage
}

// Gateway is the capability interface consumed by the analyzer, agents and
// the pipeline facade.
type Gateway interface {
	// Generate produces text for the prompt under the given constraints.
	// Failures surface as errors.CodeProviderFailure.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// InvokeTool calls a registered tool by name.
	InvokeTool(ctx context.Context, name string, args map[string]any) (any, error)

	// ToolNames lists registered tools in registration order.
	ToolNames() []string
}

// LLMGateway is the production Gateway over an llm.Provider.
type LLMGateway struct {
	provider  llm.Provider
	model     string
	tools     map[string]core.Tool
	toolOrder []string
	retry     resilience.RetryConfig
	timeout   time.Duration
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures an LLMGateway.
type Option func(*LLMGateway)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(g *LLMGateway) { g.model = model }
}

// WithTool registers a tool. Registration order is preserved.
func WithTool(tool core.Tool) Option {
	return func(g *LLMGateway) {
		if _, exists := g.tools[tool.Name()]; exists {
			return
		}
		g.tools[tool.Name()] = tool
		g.toolOrder = append(g.toolOrder, tool.Name())
	}
}

// WithRetry sets the retry policy for provider calls.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(g *LLMGateway) { g.retry = rc }
}

// WithCallTimeout sets the per-call timeout. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(g *LLMGateway) { g.timeout = d }
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *LLMGateway) { g.logger = logger }
}

// New creates an LLMGateway over the given provider.
func New(provider llm.Provider, opts ...Option) *LLMGateway {
	g := &LLMGateway{
		provider: provider,
		tools:    make(map[string]core.Tool),
		retry:    resilience.DefaultRetryConfig(),
		tracer:   otel.Tracer("focus/gateway"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Gateway.
func (g *LLMGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	ctx, span := g.tracer.Start(ctx, "Gateway.Generate", trace.WithAttributes(
		attribute.Int("context.messages", len(req.Context)),
	))
	defer span.End()

	messages := make([]llm.Message, 0, len(req.Context)+2)
	if req.Constraints.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: req.Constraints.SystemPrompt})
	}
	messages = append(messages, req.Context...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Prompt})

	model := req.Model
	if model == "" {
		model = g.model
	}
	chatReq := llm.ChatRequest{
		Model:       model,
		Messages:    messages,
		Tools:       g.permittedToolDefs(req.Constraints.AllowedTools),
		Temperature: req.Constraints.Temperature,
	}

	value, err := g.retry.DoWithResult(ctx, func() (interface{}, error) {
		return resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: g.timeout},
			func(callCtx context.Context) (interface{}, error) {
				resp, err := g.provider.Chat(callCtx, chatReq)
				if err != nil {
					return nil, errors.New(errors.CodeProviderFailure, "provider chat failed", err)
				}
				return resp, nil
			})
	})
	if err != nil {
		g.logger.WarnContext(ctx, "gateway generate failed",
			slog.String("error", err.Error()),
		)
		return nil, errors.AsFocusError(err)
	}

	resp := value.(*llm.ChatResponse)
	return &GenerateResult{Text: resp.Content, Usage: resp.Usage}, nil
}

// toolDefiner is implemented by tools that carry their own function schema
// (MCP adapters). Built-in tools fall back to a permissive object schema.
type toolDefiner interface {
	ToolDefinition() llm.Tool
}

// permittedToolDefs maps the allowed names onto registered tools, skipping
// names with no registration. Order follows the allowlist.
func (g *LLMGateway) permittedToolDefs(allowed []string) []llm.Tool {
	var defs []llm.Tool
	seen := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		tool, ok := g.tools[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		if d, ok := tool.(toolDefiner); ok {
			defs = append(defs, d.ToolDefinition())
			continue
		}
		defs = append(defs, llm.Tool{
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  map[string]any{"type": "object"},
			},
		})
	}
	return defs
}

// InvokeTool implements Gateway.
func (g *LLMGateway) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, ok := g.tools[name]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			fmt.Sprintf("tool %q not registered", name), nil)
	}

	ctx, span := g.tracer.Start(ctx, "Gateway.InvokeTool", trace.WithAttributes(
		attribute.String("tool.name", name),
	))
	defer span.End()

	result, err := tool.Call(ctx, args)
	if err != nil {
		return nil, errors.New(errors.CodeToolFailure,
			fmt.Sprintf("tool %q failed", name), err).
			WithAttribute("tool.name", name)
	}
	return result, nil
}

// ToolNames implements Gateway.
func (g *LLMGateway) ToolNames() []string {
	out := make([]string, len(g.toolOrder))
	copy(out, g.toolOrder)
	return out
}
