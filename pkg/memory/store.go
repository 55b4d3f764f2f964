// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/errors"
)

// Store is the context store: it exclusively owns the context window and the
// persona registry. Persona registration order is preserved because the
// roundtable orchestrator records turns in that order.
type Store struct {
	mu        sync.RWMutex
	window    *ContextWindow
	personas  []core.Persona
	byName    map[string]int
	retriever core.Retriever
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetriever attaches an optional retrieval service. A nil retriever is
// valid: enrichment becomes a no-op.
func WithRetriever(r core.Retriever) StoreOption {
	return func(s *Store) { s.retriever = r }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store with a window of the given character budget.
func NewStore(windowBudget int, opts ...StoreOption) *Store {
	s := &Store{
		window: NewContextWindow(windowBudget),
		byName: make(map[string]int),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the context window owned by this store.
func (s *Store) Window() *ContextWindow {
	return s.window
}

// RegisterPersona adds a persona to the registry. Registration order is the
// canonical ordering used by roundtable sessions.
func (s *Store) RegisterPersona(p core.Persona) error {
	if err := p.Validate(); err != nil {
		return errors.New(errors.CodeInvalidInput, "invalid persona", err).
			WithContext("persona", p.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[p.Name]; exists {
		return errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("persona %q already registered", p.Name), nil)
	}
	s.byName[p.Name] = len(s.personas)
	s.personas = append(s.personas, p)
	return nil
}

// Persona returns a registered persona by name.
func (s *Store) Persona(name string) (core.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byName[name]
	if !ok {
		return core.Persona{}, errors.New(errors.CodeNotFound,
			fmt.Sprintf("persona %q not registered", name), nil)
	}
	return s.personas[idx], nil
}

// Personas returns all registered personas in registration order.
func (s *Store) Personas() []core.Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Persona, len(s.personas))
	copy(out, s.personas)
	return out
}

// PinTask records the task statement as a pinned window entry.
func (s *Store) PinTask(task string) {
	s.window.AppendPinned(RoleTask, task)
}

// RecordExchange appends a user/assistant exchange to the window.
func (s *Store) RecordExchange(userMsg, assistantMsg string) {
	s.window.Append(RoleUser, userMsg)
	s.window.Append(RoleAssistant, assistantMsg)
}

// Enrich queries the retrieval service and appends up to k snippets to the
// window before scoring or grounding. Absence of the service and retrieval
// errors both degrade gracefully: the pipeline proceeds without snippets.
func (s *Store) Enrich(ctx context.Context, query string, k int) int {
	if s.retriever == nil {
		return 0
	}

	snippets, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		s.logger.WarnContext(ctx, "retrieval failed, proceeding without snippets",
			slog.String("error", err.Error()),
		)
		return 0
	}

	for _, sn := range snippets {
		s.window.Append(RoleSnippet, sn.Text)
	}
	return len(snippets)
}
