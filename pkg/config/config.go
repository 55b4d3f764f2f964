// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads pipeline configuration from defaults, an optional
// YAML file, and FOCUS_* environment variables, in that order.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	LLM        LLMConfig        `koanf:"llm"`
	Certainty  CertaintyConfig  `koanf:"certainty"`
	Roundtable RoundtableConfig `koanf:"roundtable"`
	Memory     MemoryConfig     `koanf:"memory"`
	MCP        MCPConfig        `koanf:"mcp"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // ollama, openai, mock
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type CertaintyConfig struct {
	// Threshold below which grounding is triggered automatically.
	Threshold float64 `koanf:"threshold"`
	// ModelSignal enables the external-model answerability estimate.
	ModelSignal bool `koanf:"model_signal"`
}

type RoundtableConfig struct {
	MaxRounds           int           `koanf:"max_rounds"`
	Quorum              float64       `koanf:"quorum"`
	Similarity          string        `koanf:"similarity"` // token_overlap, jaccard
	SimilarityThreshold float64       `koanf:"similarity_threshold"`
	AgentTimeout        time.Duration `koanf:"agent_timeout"`
	MaxFailureFraction  float64       `koanf:"max_failure_fraction"`
	PersonasFile        string        `koanf:"personas_file"`
}

type MemoryConfig struct {
	// WindowBudget is the context window size limit in characters.
	WindowBudget int    `koanf:"window_budget"`
	SQLitePath   string `koanf:"sqlite_path"`

	RetrievalEnabled bool   `koanf:"retrieval_enabled"`
	QdrantAddr       string `koanf:"qdrant_addr"`
	Collection       string `koanf:"collection"`
	EmbedderBaseURL  string `koanf:"embedder_base_url"`
	EmbedderModel    string `koanf:"embedder_model"`
}

// MCPConfig lists external MCP servers whose tools are registered on the
// gateway at startup.
type MCPConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

type MCPServerConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5:7b-instruct")
	k.Set("llm.base_url", "http://localhost:11434")

	k.Set("certainty.threshold", 0.6)
	k.Set("certainty.model_signal", false)

	k.Set("roundtable.max_rounds", 3)
	k.Set("roundtable.quorum", 0.66)
	k.Set("roundtable.similarity", "token_overlap")
	k.Set("roundtable.similarity_threshold", 0.8)
	k.Set("roundtable.agent_timeout", "30s")
	k.Set("roundtable.max_failure_fraction", 0.5)

	k.Set("memory.window_budget", 8000)
	k.Set("memory.sqlite_path", "focus_ai_memory.db")
	k.Set("memory.retrieval_enabled", false)
	k.Set("memory.qdrant_addr", "localhost:6334")
	k.Set("memory.collection", "focus_knowledge")
	k.Set("memory.embedder_base_url", "http://localhost:11434")
	k.Set("memory.embedder_model", "nomic-embed-text")

	k.Set("telemetry.exporter", "stdout")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (FOCUS_ROUNDTABLE_MAX_ROUNDS -> roundtable.max_rounds)
	if err := k.Load(env.Provider("FOCUS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FOCUS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
