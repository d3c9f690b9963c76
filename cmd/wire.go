package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bnema/taskwatch/internal/adapters/bridge"
	"github.com/bnema/taskwatch/internal/adapters/kv/factory"
	statusadapter "github.com/bnema/taskwatch/internal/adapters/render/status"
	"github.com/bnema/taskwatch/internal/adapters/script"
	"github.com/bnema/taskwatch/internal/adapters/server"
	"github.com/bnema/taskwatch/internal/application"
	"github.com/bnema/taskwatch/internal/config"
	"github.com/bnema/taskwatch/internal/ports"
)

type app struct {
	config         config.Config
	logger         *slog.Logger
	backend        factory.Backend
	hub            *bridge.Hub
	validator      *bridge.Validator
	state          *application.BackgroundState
	statusRenderer func(application.Status, statusadapter.RenderOptions) (string, error)
}

func wireApp(ctx context.Context, opts rootOptions, logOutput io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		level, err := config.ParseLevel(opts.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}
	logger := newLogger(logOutput, cfg)

	backend, err := factory.Open(cfg.StoreDSN, factory.Options{Logger: logger.With("component", "store")})
	if err != nil {
		return nil, fmt.Errorf("wire store: %w", err)
	}

	validator, err := bridge.NewValidator()
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("wire envelope validator: %w", err)
	}

	scripts, err := script.NewHost(cfg.ScriptsRoot, backend.Store, logger.With("component", "script"))
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("wire script host: %w", err)
	}

	hub := bridge.NewHub(logger.With("component", "bridge"))
	transport := server.NewHTTPTransport(cfg.ServerBaseURL, &http.Client{Timeout: cfg.ServerTimeout})

	state, err := application.NewBackgroundState(application.Options{
		Store:     backend.Store,
		Transport: transport,
		Browser:   hub,
		Badge:     hub,
		Notifier:  hub,
		Scripts:   scripts,
		Clock:     ports.SystemClock{},
		Logger:    logger,
		Endpoints: cfg.Endpoints,
		Pipeline:  cfg.Pipeline,
		Reconcile: application.ReconcileConfig{
			ServerOrigin:    cfg.ServerBaseURL,
			ExtensionOrigin: cfg.ExtensionOrigin,
			HomeURL:         cfg.HomeURL,
		},
		OutboxTTL: cfg.OutboxTTL,
	})
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("wire background state: %w", err)
	}
	if err := state.Rehydrate(ctx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("rehydrate state: %w", err)
	}

	return &app{
		config:         cfg,
		logger:         logger,
		backend:        backend,
		hub:            hub,
		validator:      validator,
		state:          state,
		statusRenderer: statusadapter.Render,
	}, nil
}

func (a *app) close() error {
	if a == nil || a.backend.Store == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = factory.Backend{}
	return err
}

func newLogger(output io.Writer, cfg config.Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(output, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(output, handlerOpts))
}
