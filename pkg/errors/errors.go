// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for the
// Focus AI pipeline. Error codes map one-to-one onto the recovery policy:
// recoverable codes are absorbed by round- or call-level retries, terminal
// codes propagate to the caller with whatever partial result exists.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies Focus errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeProviderFailure indicates the capability gateway's text-generation
	// provider was unreachable or errored. Recoverable by retry or fallback.
	CodeProviderFailure ErrorCode = "PROVIDER_FAILURE"

	// CodeAgentFailure indicates a single agent invocation failed within a
	// round. Recoverable by round-level policy; never crashes the session.
	CodeAgentFailure ErrorCode = "AGENT_FAILURE"

	// CodeGroundingIneffective indicates re-scoring after grounding did not
	// improve certainty. Recoverable by falling back to the ungrounded flow.
	CodeGroundingIneffective ErrorCode = "GROUNDING_INEFFECTIVE"

	// CodeClarificationRequired indicates grounding cannot proceed without
	// more user input. Surfaced to the caller, never retried.
	CodeClarificationRequired ErrorCode = "CLARIFICATION_REQUIRED"

	// CodeSessionAborted indicates an unrecoverable panel-wide failure or
	// cancellation. Terminal; the partial transcript is preserved.
	CodeSessionAborted ErrorCode = "SESSION_ABORTED"

	// CodeToolFailure indicates a tool invocation failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeRetrievalFailure indicates the retrieval service errored.
	CodeRetrievalFailure ErrorCode = "RETRIEVAL_FAILURE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeMemoryError indicates a context store error.
	CodeMemoryError ErrorCode = "MEMORY_ERROR"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// FocusError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type FocusError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *FocusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *FocusError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *FocusError) MarshalJSON() ([]byte, error) {
	type Alias FocusError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new FocusError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *FocusError {
	return &FocusError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Attributes:  make(map[string]string),
		Recoverable: defaultRecoverable(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *FocusError) WithContext(key string, value interface{}) *FocusError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *FocusError) WithAttribute(key, value string) *FocusError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *FocusError) WithRecoverable(recoverable bool) *FocusError {
	e.Recoverable = recoverable
	return e
}

// AsFocusError attempts to convert an error to a FocusError.
// Returns the error as FocusError if it is one, or wraps it otherwise.
func AsFocusError(err error) *FocusError {
	if err == nil {
		return nil
	}
	var fe *FocusError
	if stderrors.As(err, &fe) {
		return fe
	}
	return New(CodeInternal, "wrapped error", err)
}

// IsCode reports whether err carries the given error code anywhere in its
// chain.
func IsCode(err error, code ErrorCode) bool {
	var fe *FocusError
	if stderrors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *FocusError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// defaultRecoverable encodes the propagation policy per code. Callers can
// override with WithRecoverable.
func defaultRecoverable(code ErrorCode) bool {
	switch code {
	case CodeProviderFailure, CodeAgentFailure, CodeGroundingIneffective,
		CodeRetrievalFailure, CodeTimeout:
		return true
	default:
		return false
	}
}
