// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/focusai/focus/pkg/errors"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := fastConfig(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.CodeProviderFailure, "flaky", nil)
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestDoStopsOnTerminalError(t *testing.T) {
	calls := 0
	terminal := errors.New(errors.CodeInvalidInput, "bad request", nil)
	err := fastConfig(5).Do(context.Background(), func() error {
		calls++
		return terminal
	})
	if err != terminal || calls != 1 {
		t.Errorf("terminal errors must not retry: err=%v calls=%d", err, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastConfig(3).Do(context.Background(), func() error {
		calls++
		return errors.New(errors.CodeTimeout, "slow", nil)
	})
	if err == nil || calls != 3 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}
	err := cfg.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New(errors.CodeProviderFailure, "flaky", nil)
	})
	if !errors.IsCode(err, errors.CodeTimeout) {
		t.Errorf("expected TIMEOUT on cancellation, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	value, err := fastConfig(2).DoWithResult(context.Background(), func() (interface{}, error) {
		return 42, nil
	})
	if err != nil || value != 42 {
		t.Errorf("value=%v err=%v", value, err)
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10}
	if got := calculateBackoff(5, cfg); got > 2*time.Second {
		t.Errorf("backoff %v exceeds cap", got)
	}
}
