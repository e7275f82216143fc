// Package main provides the iter CLI: a DevOps agent loop that plans,
// executes, and validates changes against a working directory until
// a stop condition fires.
//
// Usage:
//
//	iter run "<task>"        - drive the reason-act Engine to completion
//	iter classic "<task>"    - drive the skill-based Architect/Worker/Validator loop
//	iter watch                - reindex the working directory as files change
//	iter config init          - write a default config.toml
//	iter version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"

	"github.com/loopwright/koru/internal/config"
	"github.com/loopwright/koru/internal/logger"
	"github.com/loopwright/koru/iter"
	"github.com/loopwright/koru/pkg/agent"
	"github.com/loopwright/koru/pkg/index"
	"github.com/loopwright/koru/pkg/llm"
	"github.com/loopwright/koru/pkg/monitor"
	"github.com/loopwright/koru/pkg/orchestra"
	"github.com/loopwright/koru/pkg/snapshot"
	"github.com/loopwright/koru/pkg/stopcond"
	"github.com/loopwright/koru/pkg/toolkit"
	"github.com/loopwright/koru/pkg/toolkit/normalize"
	"github.com/loopwright/koru/pkg/trace"
	"github.com/loopwright/koru/skills"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = cmdRun(args)
	case "classic":
		err = cmdClassic(args)
	case "watch":
		err = cmdWatch(args)
	case "config":
		err = cmdConfig(args)
	case "version", "--version", "-v":
		cmdVersion()
		return
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`iter - autonomous DevOps agent loop

Usage:
  iter run "<task>"        drive the reason-act Engine to completion
  iter classic "<task>"    drive the skill-based Architect/Worker/Validator loop
  iter watch                reindex the working directory as files change
  iter config init          write a default config.toml
  iter version

Environment:
  ANTHROPIC_API_KEY         used by --provider anthropic (default)
  OLLAMA_BASE_URL           used by --provider ollama (default http://localhost:11434)
  GOOGLE_GEMINI_API_KEY     used by --provider gemini

Flags (run/classic):
  --provider=anthropic|ollama|gemini
  --model=<model id>
  --max-iterations=<n>
  --workdir=<path>`)
}

func cmdVersion() {
	fmt.Printf("iter %s\n", version)
}

func cmdConfig(args []string) error {
	if len(args) < 1 || args[0] != "init" {
		return fmt.Errorf("usage: iter config init")
	}
	path := config.DefaultConfigPath()
	if err := config.WriteExampleConfig(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// runFlags is the shared flag set for run/classic: a tiny hand-rolled
// parser rather than the standard flag package, since subcommand and
// flags are interleaved with a free-form task string.
type runFlags struct {
	provider      string
	model         string
	maxIterations int
	workDir       string
	task          string
}

func parseRunFlags(args []string) (*runFlags, error) {
	f := &runFlags{provider: "anthropic", maxIterations: 40, workDir: "."}
	var positional []string

	for _, a := range args {
		switch {
		case hasPrefix(a, "--provider="):
			f.provider = valueOf(a)
		case hasPrefix(a, "--model="):
			f.model = valueOf(a)
		case hasPrefix(a, "--max-iterations="):
			n, err := strconv.Atoi(valueOf(a))
			if err != nil {
				return nil, fmt.Errorf("invalid --max-iterations: %w", err)
			}
			f.maxIterations = n
		case hasPrefix(a, "--workdir="):
			f.workDir = valueOf(a)
		default:
			positional = append(positional, a)
		}
	}

	if len(positional) == 0 {
		return nil, fmt.Errorf("missing task description")
	}
	f.task = positional[0]

	abs, err := filepath.Abs(f.workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}
	f.workDir = abs
	return f, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func valueOf(flag string) string {
	for i, r := range flag {
		if r == '=' {
			return flag[i+1:]
		}
	}
	return ""
}

func buildProvider(f *runFlags) (llm.Provider, error) {
	switch f.provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return llm.NewAnthropicProvider(key), nil
	case "ollama":
		return llm.NewOllamaProvider(os.Getenv("OLLAMA_BASE_URL")), nil
	case "gemini":
		provider := llm.NewGeminiProvider("")
		if provider == nil {
			return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY is not set")
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", f.provider)
	}
}

func initLogging(cfg *config.Config) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure data directories: %w", err)
	}
	l := arbor.NewLogger().WithConsoleWriter(arbor.WriterConfiguration{
		Type:  models.LogWriterTypeConsole,
		Level: models.LogLevel(cfg.Logging.Level),
	})
	logger.InitLogger(l)
	return nil
}

// cmdRun drives the reason-act Engine (pkg/agent) to completion against
// the working directory: one LLM collaborator, the core tool pack, and
// a delegation tool for handing off sub-tasks to the adversarial
// Architect/Worker/Validator workflow.
func cmdRun(args []string) error {
	f, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if err := initLogging(cfg); err != nil {
		return err
	}

	provider, err := buildProvider(f)
	if err != nil {
		return err
	}
	router := llm.NewRouter(provider)
	sdkRouter := llm.NewSDKAdapter(router)

	tools := toolkit.NewManager()
	if err := tools.Register(toolkit.NewCorePack(f.workDir, normalize.TierMedium)); err != nil {
		return fmt.Errorf("register core tools: %w", err)
	}
	if err := tools.Register(toolkit.NewBrowserPack()); err != nil {
		return fmt.Errorf("register browser tools: %w", err)
	}
	if err := tools.Register(orchestra.NewDelegationPack(sdkRouter, filepath.Join(cfg.Service.DataDir, "delegated"))); err != nil {
		return fmt.Errorf("register delegation tool: %w", err)
	}

	projectDir := cfg.ProjectDataDir(f.workDir)
	traces := trace.NewWriter(filepath.Join(projectDir, "traces"))
	snapshots := snapshot.NewStore(filepath.Join(projectDir, "snapshots"))
	arbiter := stopcond.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMonitor := monitor.NewHTTPMonitor(cfg.Address())
	if err := httpMonitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	defer httpMonitor.Stop()

	sink, err := monitor.NewJSONLSink(httpMonitor, cfg.AnalyticsDir())
	if err != nil {
		return fmt.Errorf("start analytics sink: %w", err)
	}
	defer sink.Close()

	engine := agent.NewEngine(sdkRouter, tools, traces, snapshots, arbiter,
		agent.WithEngineMonitor(httpMonitor),
	)

	run := agent.RunContext{
		TaskID:        config.ProjectHash(f.workDir),
		AgentID:       "iter-cli",
		RunID:         config.ProjectHash(f.task),
		TaskText:      f.task,
		Model:         f.model,
		ConfiguredMax: f.maxIterations,
	}

	result := engine.Execute(ctx, run)
	fmt.Printf("outcome: %s (%s)\n", result.Outcome, result.ReasonCode)
	if result.Answer != "" {
		fmt.Println(result.Answer)
	}
	fmt.Printf("iterations: %d, tokens: %d, quality: %s (%.2f)\n",
		result.Iterations, result.TotalTokens, result.Quality.Status, result.Quality.Score)

	if result.Outcome != agent.OutcomeComplete {
		return fmt.Errorf("run escalated: %s", result.EscalateReason)
	}
	return nil
}

// cmdClassic drives the skill-registry Agent facade (pkg/agent.Agent,
// via the iter SDK) instead of the Engine: the Architect/Worker/
// Validator adversarial loop with the built-in skill set.
func cmdClassic(args []string) error {
	f, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if err := initLogging(cfg); err != nil {
		return err
	}

	opts := []iter.Option{
		iter.WithWorkDir(f.workDir),
		iter.WithMaxIterations(f.maxIterations),
		iter.WithSkills(skills.All()...),
		iter.WithMemoryIndex(),
	}
	switch f.provider {
	case "ollama":
		opts = append(opts, iter.WithOllama(os.Getenv("OLLAMA_BASE_URL")))
	case "gemini":
		opts = append(opts, iter.WithGemini(""))
	default:
		opts = append(opts, iter.WithAnthropicKey(os.Getenv("ANTHROPIC_API_KEY")))
	}
	if f.model != "" {
		opts = append(opts, iter.WithExecutionModel(f.model))
	}

	a, err := iter.New(opts...)
	if err != nil {
		return fmt.Errorf("construct agent: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	task := iter.NewTask(f.task)
	result, err := iter.Run(ctx, a, task)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	fmt.Printf("status: %s\n%s\n", result.Status, result.Message)
	return nil
}

// cmdWatch keeps an in-memory index of the working directory current
// as files change, using the same exclude globs the run/classic
// commands would use for tool-proposed reads.
func cmdWatch(args []string) error {
	workDir := "."
	if len(args) > 0 {
		workDir = args[0]
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if err := initLogging(cfg); err != nil {
		return err
	}

	opts := index.IndexOptions{
		ExcludePatterns: cfg.Index.ExcludeGlobs,
		IncludePatterns: cfg.Index.IncludeExts,
		MaxFileSize:     cfg.Index.MaxFileSize,
		ParseSymbols:    true,
	}

	idx := index.NewMemoryIndex()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("indexing %s...\n", abs)
	if err := idx.IndexDirectory(ctx, abs, opts); err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	stats, _ := idx.Stats(ctx)
	if stats != nil {
		fmt.Printf("indexed %d files, %d symbols\n", stats.FileCount, stats.SymbolCount)
	}

	watcher, err := index.NewWatcher(idx, abs, opts)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	fmt.Println("watching for changes, press ctrl-c to stop")
	<-ctx.Done()
	return nil
}
