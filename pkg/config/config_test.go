// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.BaseURL != "http://localhost:11434" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Certainty.Threshold != 0.6 || cfg.Certainty.ModelSignal {
		t.Errorf("certainty = %+v", cfg.Certainty)
	}
	if cfg.Roundtable.MaxRounds != 3 || cfg.Roundtable.Quorum != 0.66 {
		t.Errorf("roundtable = %+v", cfg.Roundtable)
	}
	if cfg.Roundtable.AgentTimeout != 30*time.Second {
		t.Errorf("agent timeout = %v", cfg.Roundtable.AgentTimeout)
	}
	if cfg.Memory.WindowBudget != 8000 || cfg.Memory.SQLitePath != "focus_ai_memory.db" {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o-mini
roundtable:
  max_rounds: 5
  similarity: jaccard
  agent_timeout: 45s
certainty:
  threshold: 0.75
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Roundtable.MaxRounds != 5 || cfg.Roundtable.Similarity != "jaccard" {
		t.Errorf("roundtable = %+v", cfg.Roundtable)
	}
	if cfg.Roundtable.AgentTimeout != 45*time.Second {
		t.Errorf("agent timeout = %v", cfg.Roundtable.AgentTimeout)
	}
	if cfg.Certainty.Threshold != 0.75 {
		t.Errorf("threshold = %v", cfg.Certainty.Threshold)
	}
	// Untouched keys keep their defaults.
	if cfg.Memory.WindowBudget != 8000 {
		t.Errorf("window budget = %d", cfg.Memory.WindowBudget)
	}
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FOCUS_LOG_LEVEL", "debug")
	t.Setenv("FOCUS_LLM_PROVIDER", "mock")
	t.Setenv("FOCUS_CERTAINTY_THRESHOLD", "0.8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.LLM.Provider != "mock" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Certainty.Threshold != 0.8 {
		t.Errorf("threshold = %v", cfg.Certainty.Threshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file should fail")
	}
}
