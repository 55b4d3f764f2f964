// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides the context store: the bounded context window,
// the persona registry, and durable transcript persistence.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry roles used by the pipeline. Snippet entries come from the retrieval
// service; task entries are pinned by convention.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTask      = "task"
	RoleSnippet   = "snippet"
	RoleRound     = "round"
)

// Entry is one unit of visible context.
type Entry struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextWindow is the bounded ordered history visible to pipeline stages.
// Total content size never exceeds the configured character budget: when an
// append would overflow, the oldest non-pinned entries are evicted first.
// Pinned entries are never evicted, even if they alone exceed the budget.
type ContextWindow struct {
	mu      sync.RWMutex
	budget  int
	entries []Entry
}

// DefaultWindowBudget is the character budget used when none is configured.
const DefaultWindowBudget = 8000

// NewContextWindow creates a window with the given character budget.
// A non-positive budget falls back to DefaultWindowBudget.
func NewContextWindow(budget int) *ContextWindow {
	if budget <= 0 {
		budget = DefaultWindowBudget
	}
	return &ContextWindow{budget: budget}
}

// Append adds an entry, evicting oldest non-pinned entries as needed.
func (w *ContextWindow) Append(role, content string) Entry {
	return w.append(role, content, false)
}

// AppendPinned adds an entry that is never evicted.
func (w *ContextWindow) AppendPinned(role, content string) Entry {
	return w.append(role, content, true)
}

func (w *ContextWindow) append(role, content string, pinned bool) Entry {
	entry := Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Pinned:    pinned,
		CreatedAt: time.Now().UTC(),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, entry)
	w.evictLocked()
	return entry
}

// evictLocked removes oldest non-pinned entries until the budget is met.
func (w *ContextWindow) evictLocked() {
	for w.sizeLocked() > w.budget {
		evicted := false
		for i, e := range w.entries {
			if !e.Pinned {
				w.entries = append(w.entries[:i], w.entries[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			// Only pinned entries remain; the budget is allowed to overflow.
			return
		}
	}
}

func (w *ContextWindow) sizeLocked() int {
	total := 0
	for _, e := range w.entries {
		total += len(e.Content)
	}
	return total
}

// Size returns the total content size in characters.
func (w *ContextWindow) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sizeLocked()
}

// Len returns the number of entries.
func (w *ContextWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Snapshot returns a copy of the entries in order. Agents within a round all
// read the same snapshot; the window is only mutated between rounds.
func (w *ContextWindow) Snapshot() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Contents returns just the entry texts, in order.
func (w *ContextWindow) Contents() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.Content
	}
	return out
}

// Render produces a deterministic textual view of the window, suitable for
// inclusion in a model prompt or as a cache key component.
func (w *ContextWindow) Render() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var b strings.Builder
	for _, e := range w.entries {
		b.WriteString(e.Role)
		b.WriteString(": ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// TaskStatement returns the most recent pinned task entry, or "".
// The original task statement is pinned on session start so grounding can
// always recover the task scope.
func (w *ContextWindow) TaskStatement() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for i := len(w.entries) - 1; i >= 0; i-- {
		if w.entries[i].Pinned && w.entries[i].Role == RoleTask {
			return w.entries[i].Content
		}
	}
	return ""
}

// Clear removes all non-pinned entries.
func (w *ContextWindow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.entries[:0]
	for _, e := range w.entries {
		if e.Pinned {
			kept = append(kept, e)
		}
	}
	w.entries = kept
}
