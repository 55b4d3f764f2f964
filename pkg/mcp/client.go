// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp connects external Model Context Protocol servers to the
// capability gateway. Tools discovered on a server are adapted to the
// core.Tool interface so the pipeline can invoke them like built-ins.
package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/focusai/focus/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second
)

// Client wraps an mcp-go client with per-request timeouts, a retry policy,
// and a TTL cache over tool discovery.
type Client struct {
	transport  client.MCPClient
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	cacheTTL   time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// ClientOption customizes Client behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and initial backoff.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = retries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithToolCacheTTL sets the discovery cache TTL. Zero disables caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// NewClient wraps an already-connected MCP client.
func NewClient(transport client.MCPClient, opts ...ClientOption) *Client {
	c := &Client{
		transport:  transport,
		timeout:    defaultTimeout,
		maxRetries: defaultRetries,
		backoff:    defaultBackoff,
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientWithStdio spawns an MCP server subprocess, completes the
// initialize handshake over stdio, and returns a wrapped client.
func NewClientWithStdio(command string, args []string, opts ...ClientOption) (*Client, error) {
	stdio, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, err
	}
	if err := stdio.Start(context.Background()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var init mcp.InitializeRequest
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "focus-client", Version: "0.1.0"}
	if _, err := stdio.Initialize(ctx, init); err != nil {
		return nil, err
	}

	return NewClient(stdio, opts...), nil
}

// ListTools returns the server's tool inventory, served from cache inside
// the TTL.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	result, err := call(ctx, c, func(reqCtx context.Context) (*mcp.ListToolsResult, error) {
		return c.transport.ListTools(reqCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(result.Tools)
	return result.Tools, nil
}

// CallTool executes a named tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return call(ctx, c, func(reqCtx context.Context) (*mcp.CallToolResult, error) {
		return c.transport.CallTool(reqCtx, req)
	})
}

// Adapters lists the server's tools as core.Tool adapters ready for gateway
// registration.
func (c *Client) Adapters(ctx context.Context) ([]*ToolAdapter, error) {
	discovered, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	adapters := make([]*ToolAdapter, 0, len(discovered))
	for _, tool := range discovered {
		adapter, err := NewToolAdapter(tool, c)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

// Close shuts down the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// call applies the client's retry policy with a fresh timeout per attempt.
// Context cancellation is never retried.
func call[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error)) (T, error) {
	policy := resilience.RetryConfig{
		MaxAttempts:  c.maxRetries + 1,
		InitialDelay: c.backoff,
		MaxDelay:     c.timeout,
		Multiplier:   2.0,
		IsRecoverable: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
	}

	var out T
	err := policy.Do(ctx, func() error {
		reqCtx := ctx
		cancel := context.CancelFunc(func() {})
		if c.timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		defer cancel()

		res, err := fn(reqCtx)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}
