// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	"github.com/focusai/focus/pkg/errors"
)

// TimeoutConfig bounds a single operation. A zero Duration disables the
// boundary entirely.
type TimeoutConfig struct {
	Duration time.Duration
}

// WithTimeout runs fn under the configured deadline. The deadline winning the
// race yields CodeTimeout; fn keeps running in its goroutine until it notices
// the canceled context.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) error) error {
	_, err := WithTimeoutResult(ctx, config, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// WithTimeoutResult is WithTimeout for operations that produce a value.
func WithTimeoutResult(ctx context.Context, config TimeoutConfig, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if config.Duration == 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", config.Duration.String())
	case out := <-done:
		return out.value, out.err
	}
}
