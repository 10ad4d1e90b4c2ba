package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rhuss/todoflow/pkg/tools"
)

// Registry implements tools.Registry over a set of connected MCP
// clients. Discovery runs once, on first use.
type Registry struct {
	mu sync.RWMutex

	// clients in configuration order; earlier servers win name conflicts.
	clients []*Client

	// toolToClient maps tool name to the client that provides it.
	toolToClient map[string]*Client

	descs      []tools.Descriptor
	discovered bool
}

// Ensure Registry implements tools.Registry at compile time.
var _ tools.Registry = (*Registry)(nil)

// NewRegistry creates a Registry over already connected clients.
func NewRegistry(clients ...*Client) *Registry {
	return &Registry{
		clients:      clients,
		toolToClient: make(map[string]*Client),
	}
}

// ListTools returns the tools of every reachable server.
func (r *Registry) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	if err := r.ensureDiscovered(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descs, nil
}

// CallTool routes the call to the server that advertised the tool.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if err := r.ensureDiscovered(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	client, ok := r.toolToClient[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
	}
	return client.CallTool(ctx, name, args)
}

// Close closes all client connections, returning the last error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, c := range r.clients {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", c.cfg.Name, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// ensureDiscovered lists tools from every client once. A server that
// fails discovery is logged and skipped; discovery only fails when no
// server answered.
func (r *Registry) ensureDiscovered(ctx context.Context) error {
	r.mu.RLock()
	done := r.discovered
	r.mu.RUnlock()
	if done {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.discovered {
		return nil
	}

	var failures int
	for _, c := range r.clients {
		descs, err := c.ListTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server", "server", c.cfg.Name, "error", err)
			failures++
			continue
		}
		for _, d := range descs {
			if _, exists := r.toolToClient[d.Name]; exists {
				slog.Warn("duplicate MCP tool name, using first server", "tool", d.Name, "server", c.cfg.Name)
				continue
			}
			r.toolToClient[d.Name] = c
			r.descs = append(r.descs, d)
		}
		slog.Info("discovered MCP tools", "server", c.cfg.Name, "count", len(descs))
	}

	if len(r.clients) > 0 && failures == len(r.clients) {
		r.toolToClient = make(map[string]*Client)
		r.descs = nil
		return fmt.Errorf("no MCP server answered tool discovery")
	}
	r.discovered = true
	return nil
}
