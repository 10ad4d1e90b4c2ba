// Command mcp-server serves the TodoFlow task tools over MCP streamable
// HTTP on /mcp, backed by the store configured for the chat server. Point
// a server at it with tools.mode=mcp and tools.mcp.url.
//
// It reads the same config file and environment as cmd/server; the
// listen address comes from --addr (default :8001).
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/todoflow/pkg/bootstrap"
	"github.com/rhuss/todoflow/pkg/config"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/tools/tasktools"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	addr := flag.String("addr", ":8001", "listen address")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		slog.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
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

	server := tasktools.NewMCPServer(tasktools.New(backend, cfg.Engine.Model))
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := backend.HealthCheck(r.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp server starting", "addr", addr, "storage", cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
