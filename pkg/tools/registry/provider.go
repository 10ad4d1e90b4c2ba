// Package registry provides an in-process tools.Registry. A
// FunctionProvider contributes a set of Go-implemented tools, and the
// FunctionRegistry aggregates providers, routes calls by tool name,
// records metrics and contains provider panics.
package registry

import (
	"context"

	"github.com/rhuss/todoflow/pkg/tools"
)

// FunctionProvider is a pluggable set of in-process tools.
type FunctionProvider interface {
	// Name returns a unique identifier for this provider (e.g., "tasks").
	Name() string

	// Tools returns the descriptors this provider contributes.
	Tools() []tools.Descriptor

	// Call runs the named tool. Providers return tools.ErrToolNotFound
	// for names they do not serve.
	Call(ctx context.Context, name string, args map[string]any) (any, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Handler implements one tool.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Function pairs a descriptor with its handler.
type Function struct {
	tools.Descriptor
	Handler Handler
}

// Functions is a FunctionProvider built from a static list of functions.
type Functions struct {
	name  string
	funcs []Function
	index map[string]Handler
}

// NewFunctions creates a provider serving funcs under the given name.
func NewFunctions(name string, funcs ...Function) *Functions {
	p := &Functions{name: name, funcs: funcs, index: make(map[string]Handler, len(funcs))}
	for _, f := range funcs {
		p.index[f.Name] = f.Handler
	}
	return p
}

func (p *Functions) Name() string { return p.name }

func (p *Functions) Tools() []tools.Descriptor {
	out := make([]tools.Descriptor, len(p.funcs))
	for i, f := range p.funcs {
		out[i] = f.Descriptor
	}
	return out
}

func (p *Functions) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	h, ok := p.index[name]
	if !ok {
		return nil, tools.ErrToolNotFound
	}
	return h(ctx, args)
}

func (p *Functions) Close() error { return nil }
