// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"

	"github.com/focusai/focus/pkg/errors"
)

// FallbackStrategy decides what happens after a primary operation fails.
type FallbackStrategy interface {
	Execute(ctx context.Context, primaryErr error) (interface{}, error)
}

// FallbackFunc adapts a plain function to FallbackStrategy.
type FallbackFunc func(ctx context.Context, primaryErr error) (interface{}, error)

func (f FallbackFunc) Execute(ctx context.Context, err error) (interface{}, error) {
	return f(ctx, err)
}

// StaticFallback swallows the failure and substitutes a fixed value.
type StaticFallback struct {
	Value interface{}
}

func (s *StaticFallback) Execute(context.Context, error) (interface{}, error) {
	return s.Value, nil
}

// ErrorFallback replaces the failure with a terminal FocusError that keeps
// the original as its cause.
type ErrorFallback struct {
	Message string
}

func (e *ErrorFallback) Execute(_ context.Context, primaryErr error) (interface{}, error) {
	return nil, errors.New(errors.CodeInternal, e.Message, primaryErr).
		WithContext("fallback", "error").
		WithRecoverable(false)
}

// WithFallback runs fn and hands any failure to the strategy.
func WithFallback(ctx context.Context, fn func() (interface{}, error), fallback FallbackStrategy) (interface{}, error) {
	value, err := fn()
	if err == nil {
		return value, nil
	}
	return fallback.Execute(ctx, err)
}
