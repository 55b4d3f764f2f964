// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides the retry, timeout and fallback boundaries the
// capability gateway wraps around provider and tool calls.
package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/focusai/focus/pkg/errors"
)

// RetryConfig controls exponential-backoff retries.
type RetryConfig struct {
	// MaxAttempts caps total attempts; values below 1 are treated as 1.
	MaxAttempts int

	// InitialDelay seeds the backoff; each further attempt multiplies it.
	InitialDelay time.Duration

	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration

	// Multiplier defaults to 2 when zero.
	Multiplier float64

	// Jitter in [0,1] spreads the interval by up to that fraction either way.
	Jitter float64

	// IsRecoverable gates retries. When nil, FocusError.Recoverable decides
	// and unclassified errors are retried.
	IsRecoverable func(error) bool
}

// DefaultRetryConfig is the gateway's standard policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: recoverableByDefault,
	}
}

// Do runs fn until it succeeds, returns a non-recoverable error, or the
// attempt budget is spent. Cancellation while waiting out a backoff interval
// surfaces as CodeTimeout.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	attempts := rc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	recoverable := rc.IsRecoverable
	if recoverable == nil {
		recoverable = recoverableByDefault
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, calculateBackoff(attempt, rc)); err != nil {
				return errors.New(errors.CodeTimeout, "context canceled during retry", err).
					WithContext("attempt", attempt).
					WithContext("max_attempts", attempts).
					WithRecoverable(false)
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !recoverable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// DoWithResult is Do for operations that produce a value.
func (rc RetryConfig) DoWithResult(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := rc.Do(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func calculateBackoff(attempt int, rc RetryConfig) time.Duration {
	multiplier := rc.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}

	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	if rc.Jitter > 0 {
		spread := float64(delay) * rc.Jitter
		delay += time.Duration(spread * 2 * (rand.Float64() - 0.5))
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// recoverableByDefault respects FocusError classification anywhere in the
// chain; unclassified errors are retried.
func recoverableByDefault(err error) bool {
	if err == nil {
		return false
	}
	var fe *errors.FocusError
	if stderrors.As(err, &fe) {
		return fe.Recoverable
	}
	return true
}
