// Package bootstrap turns a loaded config.Config into the components the
// binaries run: the storage backend, the model provider, the tool registry
// and the auth chain.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/todoflow/pkg/auth"
	"github.com/rhuss/todoflow/pkg/auth/apikey"
	"github.com/rhuss/todoflow/pkg/auth/jwt"
	"github.com/rhuss/todoflow/pkg/auth/noop"
	"github.com/rhuss/todoflow/pkg/config"
	"github.com/rhuss/todoflow/pkg/engine"
	"github.com/rhuss/todoflow/pkg/provider"
	"github.com/rhuss/todoflow/pkg/provider/openai"
	"github.com/rhuss/todoflow/pkg/provider/openaicompat"
	"github.com/rhuss/todoflow/pkg/storage"
	"github.com/rhuss/todoflow/pkg/storage/memory"
	"github.com/rhuss/todoflow/pkg/storage/postgres"
	"github.com/rhuss/todoflow/pkg/storage/sqlite"
	"github.com/rhuss/todoflow/pkg/tasks"
	"github.com/rhuss/todoflow/pkg/tools"
	"github.com/rhuss/todoflow/pkg/tools/mcp"
	"github.com/rhuss/todoflow/pkg/tools/registry"
	"github.com/rhuss/todoflow/pkg/tools/tasktools"
)

// OpenBackend opens the configured history and task store.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory", "max_history", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MinConns:       cfg.Postgres.MinConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		slog.Info("storage enabled", "type", "sqlite", "path", cfg.SQLite.Path)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// NewProvider creates the Chat Completions client for the engine.
func NewProvider(cfg config.EngineConfig) (provider.Provider, error) {
	switch cfg.Provider {
	case "openaicompat":
		return openaicompat.NewClient(cfg.BackendURL, cfg.APIKey, cfg.Timeout), nil
	case "openai":
		return openai.New(openai.Config{
			BaseURL: cfg.BackendURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// EngineConfig maps the engine section onto engine.Config.
func EngineConfig(cfg config.EngineConfig) engine.Config {
	return engine.Config{
		Model:          cfg.Model,
		FallbackModels: cfg.FallbackModels,
		MaxIterations:  cfg.MaxIterations,
		HistoryLimit:   cfg.HistoryLimit,
		SystemPrompt:   cfg.SystemPrompt,
	}
}

// Registry is a tools.Registry with resources to release.
type Registry interface {
	tools.Registry
	Close() error
}

type closingRegistry struct {
	tools.Registry
	close func() error
}

func (r closingRegistry) Close() error { return r.close() }

// NewToolRegistry builds the tool registry for the configured mode. In
// builtin mode the task tools run in-process over store; in mcp mode they
// are discovered from the remote server; both puts the in-process tools
// first and adds whatever else the server offers. tools.allowed narrows
// every mode.
func NewToolRegistry(ctx context.Context, cfg config.ToolsConfig, store tasks.Store, model string) (Registry, error) {
	var (
		reg     tools.Registry
		closeFn = func() error { return nil }
	)

	switch cfg.Mode {
	case "builtin":
		reg = builtinRegistry(store, model)
	case "mcp":
		mr, err := connectMCP(ctx, cfg.MCP)
		if err != nil {
			return nil, err
		}
		reg, closeFn = mr, mr.Close
	case "both":
		mr, err := connectMCP(ctx, cfg.MCP)
		if err != nil {
			return nil, err
		}
		reg, closeFn = tools.Multi{builtinRegistry(store, model), mr}, mr.Close
	default:
		return nil, fmt.Errorf("unknown tools mode %q", cfg.Mode)
	}

	if len(cfg.Allowed) > 0 {
		reg = tools.Allowed(reg, cfg.Allowed)
	}
	return closingRegistry{Registry: reg, close: closeFn}, nil
}

func builtinRegistry(store tasks.Store, model string) *registry.FunctionRegistry {
	fr := registry.New()
	fr.Register(tasktools.New(store, model))
	return fr
}

func connectMCP(ctx context.Context, cfg config.MCPConfig) (*mcp.Registry, error) {
	client := mcp.NewClient(mcp.ServerConfig{
		Name:      "tasks",
		Transport: cfg.Transport,
		URL:       cfg.URL,
		Headers:   cfg.Headers,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	slog.Info("connected to MCP tool server", "url", cfg.URL)
	return mcp.NewRegistry(client), nil
}

// NewAuthChain builds the authenticator chain for the configured type.
func NewAuthChain(cfg config.AuthConfig) (*auth.AuthChain, error) {
	switch cfg.Type {
	case "none":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{noop.New(cfg.DefaultUser)},
			DefaultDecision: auth.No,
		}, nil
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, ServiceTier: k.ServiceTier},
			})
		}
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}, nil
	case "jwt":
		return &auth.AuthChain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				Issuer:    cfg.JWT.Issuer,
				Audience:  cfg.JWT.Audience,
				JWKSURL:   cfg.JWT.JWKSURL,
				Secret:    cfg.JWT.Secret,
				UserClaim: cfg.JWT.UserClaim,
			})},
			DefaultDecision: auth.No,
		}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}
