// Memoforge is the memo generation daemon.
//
// It serves the HTTP API (SSE generation stream, memo history, diagnostics,
// health and Prometheus metrics) and optionally mirrors every stream frame
// to NATS.
//
// Configuration is read from ~/.config/memoforge/config.yaml and
// MEMOFORGE_* environment variables.
//
// Usage:
//
//	memoforge
//	memoforge -config ./config.yaml
//	MEMOFORGE_LLM_PROVIDER=static memoforge
//	memoforge version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/assembler"
	"github.com/fyrsmithlabs/memoforge/internal/auth"
	"github.com/fyrsmithlabs/memoforge/internal/config"
	httpserver "github.com/fyrsmithlabs/memoforge/internal/http"
	"github.com/fyrsmithlabs/memoforge/internal/llm"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/plan"
	"github.com/fyrsmithlabs/memoforge/internal/retry"
	"github.com/fyrsmithlabs/memoforge/internal/secrets"
	"github.com/fyrsmithlabs/memoforge/internal/sections"
	"github.com/fyrsmithlabs/memoforge/internal/store"
	"github.com/fyrsmithlabs/memoforge/internal/stream"
	"github.com/fyrsmithlabs/memoforge/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  memoforge [-config path]   Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  memoforge version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "memoforge: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("memoforge by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the daemon and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return err
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	logCfg, err := loggingConfig(cfg)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.String("error", h.Error))
	}

	gen, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	var publisher *stream.Publisher
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("memoforge"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer func() { _ = nc.Drain() }()
		publisher = stream.NewPublisher(nc, cfg.NATS.SubjectPrefix, logger)
		prefix := cfg.NATS.SubjectPrefix
		if prefix == "" {
			prefix = stream.DefaultSubjectPrefix
		}
		logger.Info(ctx, "mirroring stream frames to nats",
			zap.String("url", nc.ConnectedUrlRedacted()),
			zap.String("subjects", prefix+".>"))
	}

	verifier := auth.NewVerifier(cfg.Auth.Tokens)
	if !verifier.Enabled() {
		logger.Info(ctx, "no api tokens configured, running single-user",
			zap.String("user", auth.LocalSubject()))
	}

	srv, err := httpserver.NewServer(httpserver.Deps{
		Generator:         gen,
		Store:             st,
		Verifier:          verifier,
		Publisher:         publisher,
		Logs:              logger.Buffer(),
		Telemetry:         tel,
		GenerationTimeout: cfg.Generation.Timeout.Duration(),
	}, logger, &httpserver.Config{Host: cfg.Server.Host, Port: cfg.Server.Port})
	if err != nil {
		return err
	}

	logger.Info(ctx, "memoforge configured",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("store", cfg.Store.Path))

	return srv.Start(ctx, cfg.Server.ShutdownTimeout.Duration())
}

// newPipeline builds the assembler: model client, retry executor, plan
// generator, section registry and topic scrubber.
func newPipeline(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*assembler.Assembler, error) {
	client, err := llm.New(ctx, cfg.LLM, logger, llm.WithStatic(llm.NewStatic(sections.DemoRules()...)))
	if err != nil {
		return nil, err
	}

	exec := retry.NewExecutor(logger)
	ro := retry.Options{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay.Duration(),
	}

	scrubCfg := secrets.DefaultConfig()
	scrubCfg.Enabled = cfg.Scrub.Enabled
	scrubber, err := secrets.New(scrubCfg)
	if err != nil {
		return nil, fmt.Errorf("creating scrubber: %w", err)
	}

	return assembler.New(
		plan.NewGenerator(client, exec, logger,
			plan.WithRetryOptions(ro),
			plan.WithMaxConcepts(cfg.Generation.MaxConcepts)),
		sections.New(client, exec, logger, sections.WithRetryOptions(ro)),
		logger,
		assembler.WithScrubber(scrubber),
	), nil
}

func loggingConfig(cfg *config.Config) (*logging.Config, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	lc.Level = level
	if cfg.Logging.Format != "" {
		lc.Format = cfg.Logging.Format
	}
	lc.Output.Buffer = cfg.Logging.Buffer
	lc.Output.OTEL = cfg.Telemetry.Enabled
	lc.Fields["version"] = version
	return lc, nil
}
