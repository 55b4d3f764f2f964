// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"fmt"
	"os"

	"github.com/focusai/focus/pkg/core"
	"gopkg.in/yaml.v3"
)

type personaFile struct {
	Personas []core.Persona `yaml:"personas"`
}

// LoadPersonasFile reads persona definitions from a YAML file. File order is
// registration order.
func LoadPersonasFile(path string) ([]core.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personas file: %w", err)
	}

	var pf personaFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse personas file: %w", err)
	}

	for i, p := range pf.Personas {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona %d in %s: %w", i, path, err)
		}
	}
	return pf.Personas, nil
}
