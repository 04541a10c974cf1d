// ABOUTME: CLI entrypoint for the postpilot campaign runner with run, validate, and server modes.
// ABOUTME: Wires together the orchestrator, credit ledger, generators, publisher, and signal handling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/postpilot-io/postpilot/content"
	"github.com/postpilot-io/postpilot/ledger"
	"github.com/postpilot-io/postpilot/pipeline"
	"github.com/postpilot-io/postpilot/provider"
	"github.com/postpilot-io/postpilot/publisher"
	"github.com/postpilot-io/postpilot/server"
	"github.com/postpilot-io/postpilot/tui"
)

var version = "dev"

// cliConfig holds all CLI configuration parsed from flags and positional arguments.
type cliConfig struct {
	serverMode   bool
	validateOnly bool
	tuiMode      bool
	verbose      bool
	showVersion  bool
	creditsOwner string
	pipelineFile string
}

func main() {
	loadDotEnv(".env")

	cfg := parseFlags(os.Args[1:])

	if cfg.showVersion {
		fmt.Printf("postpilot %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

// parseFlags parses command-line flags and returns a populated cliConfig.
func parseFlags(args []string) cliConfig {
	var cfg cliConfig

	fs := flag.NewFlagSet("postpilot", flag.ContinueOnError)
	fs.BoolVar(&cfg.serverMode, "server", false, "Start HTTP server mode")
	fs.BoolVar(&cfg.validateOnly, "validate", false, "Validate a campaign file without executing")
	fs.BoolVar(&cfg.tuiMode, "tui", false, "Run with interactive terminal UI")
	fs.StringVar(&cfg.creditsOwner, "credits", "", "Show the credit balance for an owner and exit")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(os.Stderr, version)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() > 0 {
		cfg.pipelineFile = fs.Arg(0)
	}

	return cfg
}

// run dispatches to the appropriate mode based on the config.
// Returns an exit code: 0 for success, 1 for failure.
func run(cfg cliConfig) int {
	env, err := server.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if cfg.serverMode {
		return runServer(cfg, env)
	}

	if cfg.creditsOwner != "" {
		return showCredits(cfg, env)
	}

	if cfg.pipelineFile == "" {
		printHelp(os.Stderr, version)
		return 0
	}

	if cfg.validateOnly {
		return validateCampaign(cfg)
	}

	return runCampaign(cfg, env)
}

// app bundles the wired components shared by all execution modes.
type app struct {
	orch   *pipeline.Orchestrator
	ledger *ledger.Ledger
	close  func()
}

// buildApp wires the ledger store, provider credentials, generator,
// publisher, and progress sinks into an orchestrator.
func buildApp(cfg cliConfig, env *server.Config) (*app, error) {
	if err := os.MkdirAll(env.Home, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	creds, err := provider.LoadCredentials(env.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	var store ledger.Store
	var closeStore func()
	if env.DatabaseURL != "" {
		pg, err := ledger.OpenPostgres(context.Background(), env.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		store, closeStore = pg, func() { pg.Close() }
	} else {
		sq, err := ledger.OpenSqlite(filepath.Join(env.Home, "ledger.db"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		store, closeStore = sq, func() { sq.Close() }
	}
	lgr := ledger.New(store)

	gen, err := buildGenerator(env)
	if err != nil {
		closeStore()
		return nil, err
	}

	pub := buildPublisher(cfg, env)

	progress, err := pipeline.NewNDJSONSink(env.Home)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("open progress log: %w", err)
	}

	opts := []pipeline.OrchestratorOption{pipeline.WithSink(progress)}
	if cfg.verbose {
		opts = append(opts, pipeline.WithSink(pipeline.SinkFunc(verboseSink)))
	}

	orch, err := pipeline.NewOrchestrator(content.CampaignSteps(gen, pub), lgr, creds, opts...)
	if err != nil {
		closeStore()
		return nil, err
	}

	return &app{
		orch:   orch,
		ledger: lgr,
		close: func() {
			_ = progress.Close()
			closeStore()
		},
	}, nil
}

// buildGenerator selects the generation backend from the environment config.
func buildGenerator(env *server.Config) (provider.Generator, error) {
	switch env.Generator {
	case "openai":
		gen := provider.NewOpenAIGenerator(env.GeneratorURL)
		if env.DefaultModel != "" {
			gen.DefaultModel = env.DefaultModel
		}
		return gen, nil
	case "http":
		if env.GeneratorURL == "" {
			return nil, fmt.Errorf("POSTPILOT_GENERATOR=http requires POSTPILOT_GENERATOR_URL")
		}
		return provider.NewHTTPGenerator("http", env.GeneratorURL, 120*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown generator %q (want openai or http)", env.Generator)
	}
}

// buildPublisher returns the Graph API client when page credentials are
// configured, and a dry-run publisher otherwise.
func buildPublisher(cfg cliConfig, env *server.Config) publisher.Publisher {
	if env.GraphPageID != "" && env.GraphToken != "" {
		return publisher.NewGraphClient(env.GraphURL, env.GraphPageID, env.GraphToken)
	}
	if cfg.verbose {
		fmt.Fprintln(os.Stderr, "[publisher] no page credentials configured, posts will not be published")
	}
	return dryRunPublisher{}
}

// dryRunPublisher prints the post instead of publishing it. Used when no
// Graph page is configured so campaigns remain runnable end to end.
type dryRunPublisher struct{}

func (dryRunPublisher) Publish(_ context.Context, post publisher.Post) (string, error) {
	fmt.Printf("--- dry-run post ---\n%s\n", post.Text)
	if post.ImageRef != "" {
		fmt.Printf("image: %s\n", post.ImageRef)
	}
	fmt.Println("--------------------")
	return "dry-run", nil
}

// runCampaign loads a campaign file and executes it, inline or under the TUI.
func runCampaign(cfg cliConfig, env *server.Config) int {
	runCfg, err := pipeline.LoadRunConfig(cfg.pipelineFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	application, err := buildApp(cfg, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer application.close()

	// Set up context with signal handling for graceful cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runHandle, err := application.orch.Start(ctx, runCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if cfg.tuiMode {
		model := tui.NewMonitorModel(runHandle, runCfg.Steps)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	} else {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling run...")
			_ = runHandle.Cancel()
		}()
		<-runHandle.Done()
	}

	return printRunSummary(runHandle.State())
}

// printRunSummary reports the final run state to stdout and maps it to an
// exit code.
func printRunSummary(state pipeline.RunState) int {
	fmt.Printf("Run %s %s in %s\n", state.ID, state.Status, state.Elapsed.Round(time.Millisecond))
	for _, result := range state.Results {
		if result.Error != "" {
			fmt.Printf("  %s: %s (%s)\n", result.StepID, result.Status, result.Error)
		} else {
			fmt.Printf("  %s: %s\n", result.StepID, result.Status)
		}
	}
	if state.Status != pipeline.StatusCompleted {
		if state.Error != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", state.Error)
		}
		return 1
	}
	return 0
}

// validateCampaign checks a campaign file against the step catalog without
// executing it or reserving credit.
func validateCampaign(cfg cliConfig) int {
	runCfg, err := pipeline.LoadRunConfig(cfg.pipelineFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	// A stub generator and publisher are enough to build the catalog.
	steps := content.CampaignSteps(nil, nil)
	lgr := ledger.New(ledger.NewMemoryStore())
	orch, err := pipeline.NewOrchestrator(steps, lgr, []provider.Credential{{Value: "validate", Provider: "none"}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if err := orch.Validate(runCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		return 1
	}

	fmt.Printf("Campaign is valid. Cost: %d credits.\n", orch.Cost(runCfg))
	return 0
}

// showCredits prints the credit balance for an owner.
func showCredits(cfg cliConfig, env *server.Config) int {
	application, err := buildApp(cfg, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer application.close()

	balance, err := application.ledger.Check(context.Background(), cfg.creditsOwner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("%s: %d of %d credits remaining\n", cfg.creditsOwner, balance.Remaining, balance.Total)
	if !balance.Available {
		fmt.Println("account is inactive or expired")
	}
	return 0
}

// runServer starts the HTTP API server.
func runServer(cfg cliConfig, env *server.Config) int {
	application, err := buildApp(cfg, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer application.close()

	srv := server.NewServer(application.orch, application.ledger, env.AuthToken)

	// Set up context with signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	httpServer := &http.Server{
		Addr:    env.Bind,
		Handler: srv,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "listening on %s\n", env.Bind)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	return 0
}

// verboseSink prints step results to stderr as they are emitted.
func verboseSink(runID string, result pipeline.StepResult) {
	if result.Error != "" {
		fmt.Fprintf(os.Stderr, "[%s] %s %s: %s\n", runID, result.StepID, result.Status, result.Error)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] %s %s (%d attempts, %s)\n",
		runID, result.StepID, result.Status, result.Attempts, result.Duration.Round(time.Millisecond))
}
