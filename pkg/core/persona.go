// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "errors"

// Persona is a configured role profile driving one roundtable participant.
// Personas are data, not types: new personas come from configuration, not
// from new Go code. Field order is part of the persisted format and must
// stay stable.
type Persona struct {
	Name         string   `json:"name" yaml:"name"`
	Role         string   `json:"role" yaml:"role"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Temperature  float64  `json:"temperature" yaml:"temperature"`
	Expertise    []string `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	AllowedTools []string `json:"allowed_tools,omitempty" yaml:"allowed_tools,omitempty"`
}

// Validate checks the minimal fields required to invoke an agent.
func (p Persona) Validate() error {
	if p.Name == "" {
		return errors.New("persona name is required")
	}
	if p.Role == "" {
		return errors.New("persona role is required")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return errors.New("persona temperature must be in [0, 2]")
	}
	return nil
}

// MayUse reports whether the persona is permitted to invoke the named tool.
// An empty AllowedTools list means no tools at all.
func (p Persona) MayUse(tool string) bool {
	for _, t := range p.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// DefaultPanel returns the built-in five-seat panel with varied thinking
// styles and temperatures.
func DefaultPanel() []Persona {
	roles := []struct {
		role      string
		expertise []string
	}{
		{"Creative", []string{"Arts", "Philosophy"}},
		{"Analytical", []string{"Science", "Tech"}},
		{"Practical", []string{"Business", "Tech"}},
		{"Critical", []string{"Science", "Philosophy"}},
		{"Visionary", []string{"Business", "Arts"}},
	}
	panel := make([]Persona, 0, len(roles))
	for i, r := range roles {
		panel = append(panel, Persona{
			Name:        "P" + string(rune('1'+i)),
			Role:        r.role,
			Temperature: 0.3 + float64(i)*0.15,
			Expertise:   r.expertise,
		})
	}
	return panel
}
