package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"vibedocs/internal/gateway/config"
	"vibedocs/internal/gateway/handler"
	"vibedocs/internal/gateway/server"
	"vibedocs/internal/llm"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/logging"
	"vibedocs/internal/pipeline"
	"vibedocs/internal/validation"
)

type App struct {
	server *server.Server
	logs   io.Closer
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, closer, err := logging.New(logging.Config{File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a, err := NewWithConfig(cfg, llmclient.NewFactory(), logger)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	a.logs = closer
	return a, nil
}

// NewWithConfig wires the gateway around factory.
func NewWithConfig(cfg *config.Config, factory llmclient.Factory, logger *log.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	h := NewHandler(cfg, factory, logger)
	mux := server.NewMux(h, cfg.AllowedOrigins)
	return &App{server: server.New(cfg.Port, mux, logger)}, nil
}

// NewHandler builds the endpoint handler. A provider call in flight runs to
// its own deadline when the client goes away; streams stop dispatching
// further documents once the request context ends.
func NewHandler(cfg *config.Config, factory llmclient.Factory, logger *log.Logger) *handler.Handler {
	calls := llm.NewAdapter(factory,
		llm.WithLogging(logger),
		llm.RateLimitFromEnv(cfg.LLM.EnvPrefixes...),
		llm.Detached(),
		llm.Timeout(cfg.LLM.Timeout),
	)
	orch := pipeline.NewOrchestrator(calls, pipeline.Options{Logger: logger})
	validator := validation.New(calls, validation.Options{Logger: logger})
	return handler.New(orch, validator, calls, logger)
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}
