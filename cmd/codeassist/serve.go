package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/codeassist/internal/api"
	"github.com/matiasleandrokruk/codeassist/internal/domain/assistant"
	"github.com/matiasleandrokruk/codeassist/internal/domain/budget"
	"github.com/matiasleandrokruk/codeassist/internal/domain/memory"
	"github.com/matiasleandrokruk/codeassist/internal/domain/prompt"
	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
	"github.com/matiasleandrokruk/codeassist/internal/domain/usage"
	"github.com/matiasleandrokruk/codeassist/internal/infra/config"
	"github.com/matiasleandrokruk/codeassist/internal/infra/eventbus"
	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
	"github.com/matiasleandrokruk/codeassist/internal/infra/logging"
	"github.com/matiasleandrokruk/codeassist/internal/infra/sqlite"
	"github.com/matiasleandrokruk/codeassist/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		host     string
		port     int
		envFiles []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv(envFiles...)
			cfg := config.Load()
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host to bind to (overrides HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides PORT)")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default .env)")
	return cmd
}

// app is the wired process: the HTTP handler plus everything that must be
// released on shutdown.
type app struct {
	handler         http.Handler
	assistant       *assistant.Service
	registry        *provider.Registry
	defaultProvider provider.ProviderID
	closers         []io.Closer
	run             func(ctx context.Context)
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func buildApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	registry := provider.DefaultRegistry()
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	defaultProvider, ok := provider.ParseProviderID(cfg.DefaultProvider)
	if !ok {
		logger.Warn("unknown default provider, using openai", "provider", cfg.DefaultProvider)
		defaultProvider = provider.DefaultProvider
	}

	catalog, err := prompt.LoadCatalog(cfg.PromptCatalog)
	if err != nil {
		return nil, err
	}
	estimator, err := budget.NewEstimator(cfg.TokenEstimator)
	if err != nil {
		return nil, err
	}

	store, closers, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	closers = append(closers, closerFunc(func() error { bus.Close(); return nil }))
	recorder := usage.NewRecorder(logger)

	resolver := provider.NewResolver(registry, llm.NewFactory(cfg.LLMTimeout, cfg.LLMRateLimit),
		provider.WithLogger(logger))
	svc := assistant.NewService(resolver, prompt.NewBuilder(catalog),
		budget.New(estimator, provider.ContextLimit), store,
		assistant.WithEventBus(bus), assistant.WithLogger(logger))

	logger.Info("service configured",
		"default_provider", defaultProvider,
		"token_estimator", estimator.Name(),
		"session_backend", cfg.SessionBackend,
		"llm_timeout", cfg.LLMTimeout,
		"llm_rate_limit", cfg.LLMRateLimit)

	return &app{
		handler: api.NewRouter(api.RouterDeps{
			Assistant:       svc,
			Registry:        registry,
			DefaultProvider: defaultProvider,
			Usage:           recorder,
			AllowedOrigins:  cfg.CORSAllowedOrigins,
			Logger:          logger,
		}),
		assistant:       svc,
		registry:        registry,
		defaultProvider: defaultProvider,
		closers:         closers,
		run:             func(ctx context.Context) { recorder.Run(ctx, bus) },
	}, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.run(ctx)

	srvCfg := server.DefaultConfig()
	srvCfg.Host, srvCfg.Port = cfg.Host, cfg.Port
	if floor := cfg.LLMTimeout + 30*time.Second; srvCfg.WriteTimeout < floor {
		srvCfg.WriteTimeout = floor
	}
	srv := server.NewServer(a.handler, srvCfg, logger, a.closers...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	var startErr error
	select {
	case startErr = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}
	return <-errCh
}

func openStore(cfg config.Config) (memory.Store, []io.Closer, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendMemory, "":
		return memory.NewInMemoryStore(), nil, nil
	case config.SessionBackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create session database directory: %w", err)
		}
		db, err := sqlite.Open(context.Background(), cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open session database: %w", err)
		}
		return memory.NewSQLiteStore(db), []io.Closer{db}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
