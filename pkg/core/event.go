// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by pipeline stages.
type EventType string

const (
	EventCertaintyScored      EventType = "certainty.scored"
	EventGroundingApplied     EventType = "grounding.applied"
	EventGroundingIneffective EventType = "grounding.ineffective"
	EventClarificationNeeded  EventType = "grounding.clarification_needed"
	EventRoundStarted         EventType = "roundtable.round.started"
	EventRoundCompleted       EventType = "roundtable.round.completed"
	EventAgentFailed          EventType = "roundtable.agent.failed"
	EventSessionConverged     EventType = "roundtable.session.converged"
	EventSessionExhausted     EventType = "roundtable.session.exhausted"
	EventSessionAborted       EventType = "roundtable.session.aborted"
)

// Event captures a semantic pipeline event for streaming or logging.
type Event struct {
	Type      EventType
	SessionID string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is the default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType EventType, sessionID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
