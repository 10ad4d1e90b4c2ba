package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/transport"
)

// Server runs the chat adapter behind an http.Server and drains open
// streams on shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     serverConfig
	logger     *slog.Logger
}

type serverConfig struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	DuplicateDone   bool
	MetricsPath     string

	adapterOpts []AdapterOption
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address. Default ":8000".
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize caps request bodies. Default 1 MB.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithTimeouts sets the read and write timeouts. A zero write timeout
// keeps long chat streams open.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) { s.config.ReadTimeout, s.config.WriteTimeout = read, write }
}

// WithShutdownTimeout bounds how long shutdown waits for open streams.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithDuplicateDone repeats the [DONE] sentinel at the end of each stream.
func WithDuplicateDone(on bool) ServerOption {
	return func(s *Server) { s.config.DuplicateDone = on }
}

// WithMetricsPath sets where Prometheus metrics are served; empty disables them.
func WithMetricsPath(path string) ServerOption {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithLogger replaces slog.Default for request and lifecycle logs.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithAdapterOptions passes options through to the HTTP adapter.
func WithAdapterOptions(opts ...AdapterOption) ServerOption {
	return func(s *Server) { s.config.adapterOpts = append(s.config.adapterOpts, opts...) }
}

// NewServer builds a server for runner. Every request passes through
// panic recovery, request ids and access logging before the adapter.
func NewServer(runner transport.ChatRunner, hist history.Store, opts ...ServerOption) *Server {
	s := &Server{
		config: serverConfig{
			Addr:            ":8000",
			MaxBodySize:     1 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MetricsPath:     "/metrics",
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.adapter = NewAdapter(runner, hist,
		Config{
			MaxBodySize:   s.config.MaxBodySize,
			DuplicateDone: s.config.DuplicateDone,
			MetricsPath:   s.config.MetricsPath,
		},
		s.config.adapterOpts,
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	)
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.adapter.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s
}

// Serve listens on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("server starting", "addr", s.config.Addr)
	return s.run(ctx, s.httpServer.ListenAndServe)
}

// ServeOn is Serve on an existing listener.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	return s.run(ctx, func() error { return s.httpServer.Serve(ln) })
}

// Shutdown stops accepting connections and waits for open requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) run(ctx context.Context, serve func() error) error {
	errCh := make(chan error, 1)
	go func() {
		if err := serve(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down", "timeout", s.config.ShutdownTimeout)
	if err := s.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown failed", "error", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
