package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/todoflow/pkg/tools"
)

// Prometheus metrics for in-process tool execution.
var (
	functionToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todoflow_function_tool_calls_total",
			Help: "Total in-process tool calls",
		},
		[]string{"provider", "tool", "status"},
	)

	functionToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todoflow_function_tool_duration_seconds",
			Help:    "In-process tool call duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"provider", "tool"},
	)
)

func init() {
	prometheus.MustRegister(functionToolCalls, functionToolDuration)
}

// FunctionRegistry aggregates FunctionProviders and implements tools.Registry.
type FunctionRegistry struct {
	mu sync.RWMutex

	// providers stores registered providers in insertion order.
	providers []FunctionProvider

	// toolToProvider maps tool name to the provider that owns it.
	toolToProvider map[string]FunctionProvider
}

// Ensure FunctionRegistry implements tools.Registry at compile time.
var _ tools.Registry = (*FunctionRegistry)(nil)

// New creates an empty FunctionRegistry.
func New() *FunctionRegistry {
	return &FunctionRegistry{
		toolToProvider: make(map[string]FunctionProvider),
	}
}

// Register adds a provider to the registry. Tool names are resolved on a
// first-come, first-served basis: if two providers supply a tool with the
// same name, the first registered provider wins and a warning is logged.
func (r *FunctionRegistry) Register(p FunctionProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)

	for _, td := range p.Tools() {
		if existing, ok := r.toolToProvider[td.Name]; ok {
			slog.Warn("tool name conflict, keeping first provider",
				"tool", td.Name,
				"winner", existing.Name(),
				"loser", p.Name(),
			)
			continue
		}
		r.toolToProvider[td.Name] = p
	}

	slog.Info("registered tool provider",
		"provider", p.Name(),
		"tools", len(p.Tools()),
	)
}

// ListTools returns the descriptors of every routable tool, in
// registration order.
func (r *FunctionRegistry) ListTools(_ context.Context) ([]tools.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []tools.Descriptor
	for _, p := range r.providers {
		for _, td := range p.Tools() {
			if r.toolToProvider[td.Name] == p {
				all = append(all, td)
			}
		}
	}
	return all, nil
}

// CallTool routes the call to the owning provider, records metrics, and
// converts provider panics into a domain error.
func (r *FunctionRegistry) CallTool(ctx context.Context, name string, args map[string]any) (result any, err error) {
	r.mu.RLock()
	p, ok := r.toolToProvider[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
	}

	providerName := p.Name()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool provider panicked",
				"provider", providerName,
				"tool", name,
				"panic", rec,
			)
			result = nil
			err = tools.NewDomainError("internal error: tool %q panicked", name)

			functionToolCalls.WithLabelValues(providerName, name, "panic").Inc()
			functionToolDuration.WithLabelValues(providerName, name).Observe(time.Since(start).Seconds())
		}
	}()

	result, err = p.Call(ctx, name, args)

	status := "success"
	switch {
	case tools.IsDomainError(err):
		status = "tool_error"
	case err != nil:
		status = "error"
	}

	functionToolCalls.WithLabelValues(providerName, name, status).Inc()
	functionToolDuration.WithLabelValues(providerName, name).Observe(time.Since(start).Seconds())

	return result, err
}

// Close closes all registered providers, returning the last error encountered.
func (r *FunctionRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			slog.Warn("failed to close tool provider", "provider", p.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// HasProviders returns true if at least one provider is registered.
func (r *FunctionRegistry) HasProviders() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
