// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a user request as submitted. Immutable once created; grounding
// produces a derived rewrite, never a mutation.
type Prompt struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Tag         string    `json:"tag,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewPrompt creates a Prompt with a generated ID and submission timestamp.
func NewPrompt(text string) Prompt {
	return Prompt{
		ID:          uuid.NewString(),
		Text:        text,
		SubmittedAt: time.Now().UTC(),
	}
}

// NewTaggedPrompt creates a Prompt carrying an optional task tag.
func NewTaggedPrompt(text, tag string) Prompt {
	p := NewPrompt(text)
	p.Tag = tag
	return p
}
