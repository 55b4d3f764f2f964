// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/focusai/focus/pkg/certainty"
	"github.com/focusai/focus/pkg/config"
	"github.com/focusai/focus/pkg/core"
	"github.com/focusai/focus/pkg/gateway"
	"github.com/focusai/focus/pkg/grounding"
	"github.com/focusai/focus/pkg/llm"
	focusmcp "github.com/focusai/focus/pkg/mcp"
	"github.com/focusai/focus/pkg/memory"
	memollama "github.com/focusai/focus/pkg/memory/ollama"
	memqdrant "github.com/focusai/focus/pkg/memory/qdrant"
	"github.com/focusai/focus/pkg/pipeline"
	"github.com/focusai/focus/pkg/roundtable"
	"github.com/focusai/focus/pkg/telemetry"
	"github.com/focusai/focus/pkg/tools"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	Mode       string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "analyze":
		runAnalyze(ctx, global, args[1:])
	case "ground":
		runGround(ctx, global, args[1:])
	case "chat":
		runChat(ctx, global, args[1:])
	case "roundtable":
		runRoundtable(ctx, global, args[1:])
	case "personas":
		runPersonas(global)
	case "version":
		fmt.Println(version)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{Mode: string(pipeline.ModeBalanced)}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--mode":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --mode")
			}
			flags.Mode = args[i+1]
			i++
		case strings.HasPrefix(arg, "--mode="):
			flags.Mode = strings.TrimPrefix(arg, "--mode=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg        *config.Config
	pipe       *pipeline.Pipeline
	store      *memory.Store
	mcpClients []*focusmcp.Client
	shutdown   telemetry.ShutdownFunc
}

func buildApp(flags globalFlags) (*app, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.InitWithConfig("focus", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewPipelineMetrics()
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	storeOpts := []memory.StoreOption{}
	if cfg.Memory.RetrievalEnabled {
		vectors, err := memqdrant.New(cfg.Memory.QdrantAddr)
		if err != nil {
			return nil, err
		}
		embedder := memollama.NewEmbedder(cfg.Memory.EmbedderBaseURL, cfg.Memory.EmbedderModel)
		retriever := memory.NewVectorRetriever(vectors, embedder, cfg.Memory.Collection, 0.3)
		storeOpts = append(storeOpts, memory.WithRetriever(retriever))
	}
	store := memory.NewStore(cfg.Memory.WindowBudget, storeOpts...)

	if cfg.Roundtable.PersonasFile != "" {
		personas, err := memory.LoadPersonasFile(cfg.Roundtable.PersonasFile)
		if err != nil {
			return nil, err
		}
		for _, p := range personas {
			if err := store.RegisterPersona(p); err != nil {
				return nil, err
			}
		}
	}

	gwOpts := []gateway.Option{
		gateway.WithModel(cfg.LLM.Model),
		gateway.WithTool(tools.NewCalculator()),
		gateway.WithTool(tools.NewContextSearch(store.Window())),
	}
	mcpClients, mcpOpts, err := connectMCPServers(cfg.MCP.Servers)
	if err != nil {
		return nil, err
	}
	gwOpts = append(gwOpts, mcpOpts...)
	gw := gateway.New(provider, gwOpts...)

	analyzerOpts := []certainty.AnalyzerOption{
		certainty.WithThreshold(cfg.Certainty.Threshold),
		certainty.WithMetrics(metrics),
	}
	if cfg.Certainty.ModelSignal {
		analyzerOpts = append(analyzerOpts, certainty.WithGateway(gw))
	}
	analyzer := certainty.NewAnalyzer(analyzerOpts...)
	grounder := grounding.NewGrounder(analyzer, grounding.WithMetrics(metrics))

	similarity, err := roundtable.SimilarityFor(cfg.Roundtable.Similarity)
	if err != nil {
		return nil, err
	}
	orchestrator := roundtable.NewOrchestrator(gw,
		roundtable.WithMaxRounds(cfg.Roundtable.MaxRounds),
		roundtable.WithQuorum(cfg.Roundtable.Quorum),
		roundtable.WithSimilarity(similarity),
		roundtable.WithSimilarityThreshold(cfg.Roundtable.SimilarityThreshold),
		roundtable.WithAgentTimeout(cfg.Roundtable.AgentTimeout),
		roundtable.WithMaxFailureFraction(cfg.Roundtable.MaxFailureFraction),
		roundtable.WithOrchestratorMetrics(metrics),
	)

	pipeOpts := []pipeline.PipelineOption{}
	if cfg.Memory.SQLitePath != "" {
		transcripts, err := memory.OpenTranscriptStore(cfg.Memory.SQLitePath)
		if err != nil {
			return nil, err
		}
		pipeOpts = append(pipeOpts, pipeline.WithTranscripts(transcripts))
	}
	pipe := pipeline.New(analyzer, grounder, orchestrator, gw, store, pipeOpts...)

	return &app{cfg: cfg, pipe: pipe, store: store, mcpClients: mcpClients, shutdown: shutdown}, nil
}

// connectMCPServers spawns each configured MCP server and returns gateway
// options registering its discovered tools.
func connectMCPServers(servers []config.MCPServerConfig) ([]*focusmcp.Client, []gateway.Option, error) {
	var clients []*focusmcp.Client
	var opts []gateway.Option
	for _, server := range servers {
		client, err := focusmcp.NewClientWithStdio(server.Command, server.Args)
		if err != nil {
			return nil, nil, fmt.Errorf("mcp server %q: %w", server.Name, err)
		}
		adapters, err := client.Adapters(context.Background())
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("mcp server %q tools: %w", server.Name, err)
		}
		for _, adapter := range adapters {
			opts = append(opts, gateway.WithTool(adapter))
		}
		clients = append(clients, client)
	}
	return clients, opts, nil
}

func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return llm.NewOllama(cfg.BaseURL), nil
	case "openai":
		return llm.NewOpenAICompat(cfg.BaseURL, cfg.APIKey), nil
	case "mock":
		return &llm.MockProvider{Response: "mock response"}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func runAnalyze(ctx context.Context, flags globalFlags, args []string) {
	text := joinedText(args, "usage: focus analyze <text>")
	app := mustBuild(flags)
	defer app.close(ctx)

	score, err := app.pipe.Analyze(ctx, text)
	if err != nil {
		fatal(err)
	}
	if flags.JSON {
		printJSON(score)
		return
	}
	fmt.Printf("certainty: %.3f (clarity %.2f, specificity %.2f, relevance %.2f)\n",
		score.Value, score.Clarity, score.Specificity, score.ContextRelevance)
	for _, d := range score.Deficiencies {
		fmt.Printf("  - %s\n", d)
	}
	fmt.Println(score.Recommendation)
}

func runGround(ctx context.Context, flags globalFlags, args []string) {
	text := joinedText(args, "usage: focus ground <text>")
	app := mustBuild(flags)
	defer app.close(ctx)

	grounded, err := app.pipe.Ground(ctx, text)
	if err != nil {
		fatal(err)
	}
	if flags.JSON {
		printJSON(grounded)
		return
	}
	if grounded.RequiresClarification {
		fmt.Println(grounded.ClarificationRequest)
		return
	}
	fmt.Println(grounded.Rewritten)
	if grounded.After != nil {
		fmt.Printf("score: %.3f -> %.3f", grounded.Before.Value, grounded.After.Value)
		if grounded.NoImprovement {
			fmt.Print(" (no improvement)")
		}
		fmt.Println()
	}
}

func runChat(ctx context.Context, flags globalFlags, args []string) {
	text := joinedText(args, "usage: focus chat <text>")
	app := mustBuild(flags)
	defer app.close(ctx)

	result, err := app.pipe.Process(ctx, text, pipeline.Options{Mode: pipeline.Mode(flags.Mode)})
	printResult(result, err, flags.JSON)
}

func runRoundtable(ctx context.Context, flags globalFlags, args []string) {
	task := joinedText(args, "usage: focus roundtable <task>")
	app := mustBuild(flags)
	defer app.close(ctx)

	result, err := app.pipe.Process(ctx, task, pipeline.Options{
		Mode:       pipeline.Mode(flags.Mode),
		Roundtable: true,
	})
	printResult(result, err, flags.JSON)
}

func printResult(result *pipeline.Result, err error, asJSON bool) {
	if result == nil && err != nil {
		fatal(err)
	}
	if asJSON {
		printJSON(result)
		if err != nil {
			os.Exit(1)
		}
		return
	}
	if result.Session != nil {
		for _, turn := range result.Session.Turns {
			fmt.Printf("[round %d] %s (%.2f): %s\n", turn.Round, turn.Persona, turn.Confidence, turn.Text)
		}
		fmt.Printf("session: %s after %d round(s)\n", result.Session.State, result.Session.Rounds)
	}
	fmt.Printf("status: %s\n", result.Status)
	if result.Response != "" {
		fmt.Println(result.Response)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPersonas(flags globalFlags) {
	app := mustBuild(flags)
	defer app.close(context.Background())
	personas := app.store.Personas()
	if len(personas) == 0 {
		personas = core.DefaultPanel()
	}
	if flags.JSON {
		printJSON(personas)
		return
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tROLE\tTEMP\tEXPERTISE")
	for _, p := range personas {
		fmt.Fprintf(writer, "%s\t%s\t%.2f\t%s\n", p.Name, p.Role, p.Temperature, strings.Join(p.Expertise, ", "))
	}
	_ = writer.Flush()
}

func mustBuild(flags globalFlags) *app {
	app, err := buildApp(flags)
	if err != nil {
		fatal(err)
	}
	return app
}

func (a *app) close(ctx context.Context) {
	for _, client := range a.mcpClients {
		_ = client.Close()
	}
	if a.shutdown != nil {
		_ = a.shutdown(ctx)
	}
}

func joinedText(args []string, usage string) string {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		fatal(fmt.Errorf("%s", usage))
	}
	return text
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func printUsage() {
	fmt.Println(`Focus AI CLI

Usage:
  focus [global flags] <command> [args]

Global flags:
  --config <path>   Path to config YAML
  --mode <mode>     Response mode: balanced, creative, precise, research
  --json            JSON output

Commands:
  analyze <text>      Score prompt certainty
  ground <text>       Ground a low-certainty prompt
  chat <text>         Run the full pipeline with a single-agent response
  roundtable <task>   Run the multi-agent roundtable
  personas            List the configured panel
  version`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
