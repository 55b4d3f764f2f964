// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "context"

type sessionIDKey struct{}

// WithSessionID attaches a roundtable session id to the context so stages
// below the orchestrator can tag events and errors with it.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the session id if present.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok
}
