// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/llm"
)

// ToolCaller abstracts MCP tool execution so adapters can be tested without
// a live server.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ToolAdapter presents one MCP tool as a core.Tool.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
}

var _ core.Tool = (*ToolAdapter)(nil)

// NewToolAdapter builds an adapter from an MCP tool definition and a caller.
func NewToolAdapter(tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &ToolAdapter{tool: tool, caller: caller}, nil
}

// Name returns the MCP tool name.
func (t *ToolAdapter) Name() string { return t.tool.Name }

// Description returns the MCP tool description.
func (t *ToolAdapter) Description() string { return t.tool.Description }

// ToolDefinition returns the LLM function definition for this tool.
func (t *ToolAdapter) ToolDefinition() llm.Tool {
	return ToolDefinition(t.tool)
}

// Call validates required arguments against the tool schema, invokes the
// server, and unpacks the result.
func (t *ToolAdapter) Call(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := checkRequired(t.tool, args); err != nil {
		return nil, err
	}

	result, err := t.caller.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return nil, err
	}
	return unpackResult(result)
}

// ToolDefinition converts an MCP tool into an LLM function tool definition.
// A raw schema, when present, wins over the parsed one.
func ToolDefinition(tool mcp.Tool) llm.Tool {
	var params any = tool.InputSchema
	if tool.RawInputSchema != nil {
		params = tool.RawInputSchema
	}
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		},
	}
}

// ToolDefinitions converts a tool inventory in one pass.
func ToolDefinitions(tools []mcp.Tool) []llm.Tool {
	defs := make([]llm.Tool, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, ToolDefinition(tool))
	}
	return defs
}

func checkRequired(tool mcp.Tool, args map[string]any) error {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("mcp tool args: missing required field %q", key)
		}
	}
	return nil
}

// unpackResult prefers structured content, then concatenated text content,
// then the raw result.
func unpackResult(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New("mcp tool result is nil")
	}
	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", textContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	if text := textContent(result.Content); text != "" {
		return text, nil
	}
	return result, nil
}

func textContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
