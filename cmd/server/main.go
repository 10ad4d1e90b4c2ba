// Command server runs the TodoFlow chat agent.
//
// Configuration is read from a YAML file (--config, TODOFLOW_CONFIG,
// ./config.yaml or /etc/todoflow/config.yaml) with environment overrides:
//
//	OPENAI_API_KEY / TODOFLOW_API_KEY   - backend API key; its prefix selects Qwen or Gemini
//	OPENAI_API_BASE / TODOFLOW_BACKEND_URL - Chat Completions base URL
//	LLM_MODEL / TODOFLOW_MODEL          - primary model (default: gpt-4o)
//	DATABASE_URL / TODOFLOW_STORAGE_DSN - postgres:// or sqlite:/// store
//	TODOFLOW_PORT                       - listen port (default: 8000)
//	TODOFLOW_AUTH_TYPE                  - none, apikey or jwt (default: none)
//	TODOFLOW_TOOLS_MODE                 - builtin, mcp or both (default: builtin)
//	TODOFLOW_DEBUG                      - debug categories, e.g. "engine,tools"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rhuss/todoflow/pkg/auth"
	"github.com/rhuss/todoflow/pkg/bootstrap"
	"github.com/rhuss/todoflow/pkg/config"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/engine"
	transporthttp "github.com/rhuss/todoflow/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	prov, err := bootstrap.NewProvider(cfg.Engine)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	registry, err := bootstrap.NewToolRegistry(ctx, cfg.Tools, backend, cfg.Engine.Model)
	if err != nil {
		return fmt.Errorf("creating tool registry: %w", err)
	}
	defer registry.Close()

	eng, err := engine.New(prov, registry, backend, bootstrap.EngineConfig(cfg.Engine))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	chain, err := bootstrap.NewAuthChain(cfg.Auth)
	if err != nil {
		return fmt.Errorf("creating auth chain: %w", err)
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(eng, backend,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithDuplicateDone(cfg.Transport.DuplicateDone),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithAdapterOptions(
			transporthttp.WithAuth(auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)),
			transporthttp.WithModelLister(prov),
			transporthttp.WithHealthCheck(backend.HealthCheck),
		),
	)

	slog.Info("todoflow configured",
		"provider", prov.Name(),
		"backend", cfg.Engine.BackendURL,
		"model", cfg.Engine.Model,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"tools", cfg.Tools.Mode,
	)
	return srv.Serve(ctx)
}
