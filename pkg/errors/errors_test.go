// SPDX-License-Identifier: Apache-2.0
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeProviderFailure, "chat failed", fmt.Errorf("connection refused"))
	want := "[PROVIDER_FAILURE] chat failed: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := New(CodeNotFound, "no such tool", nil)
	if bare.Error() != "[NOT_FOUND] no such tool" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestUnwrapAndIsCode(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := New(CodeAgentFailure, "agent died", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected the cause in the chain")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !IsCode(wrapped, CodeAgentFailure) {
		t.Error("IsCode should traverse wrapping")
	}
	if IsCode(wrapped, CodeTimeout) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(nil, CodeTimeout) {
		t.Error("IsCode(nil) must be false")
	}
}

func TestDefaultRecoverable(t *testing.T) {
	recoverable := []ErrorCode{
		CodeProviderFailure, CodeAgentFailure, CodeGroundingIneffective,
		CodeRetrievalFailure, CodeTimeout,
	}
	for _, code := range recoverable {
		if !New(code, "x", nil).Recoverable {
			t.Errorf("%s should default recoverable", code)
		}
	}
	terminal := []ErrorCode{
		CodeInternal, CodeInvalidInput, CodeClarificationRequired,
		CodeSessionAborted, CodeToolFailure, CodeMemoryError, CodeNotFound,
	}
	for _, code := range terminal {
		if New(code, "x", nil).Recoverable {
			t.Errorf("%s should default terminal", code)
		}
	}

	if New(CodeProviderFailure, "x", nil).WithRecoverable(false).Recoverable {
		t.Error("WithRecoverable override ignored")
	}
}

func TestWithContextAndAttribute(t *testing.T) {
	err := New(CodeSessionAborted, "aborted", nil).
		WithContext("session_id", "s1").
		WithAttribute("persona", "A")
	if err.Context["session_id"] != "s1" || err.Attributes["persona"] != "A" {
		t.Errorf("context = %v attributes = %v", err.Context, err.Attributes)
	}
}

func TestAsFocusError(t *testing.T) {
	fe := New(CodeTimeout, "slow", nil)
	if AsFocusError(fmt.Errorf("w: %w", fe)) != fe {
		t.Error("should find the typed error in the chain")
	}
	converted := AsFocusError(fmt.Errorf("plain"))
	if converted.Code != CodeInternal {
		t.Errorf("plain errors wrap as %s", converted.Code)
	}
	if AsFocusError(nil) != nil {
		t.Error("nil stays nil")
	}
}
