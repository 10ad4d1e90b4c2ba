package tools

import "context"

// Allowed restricts r to the named tools. Hidden tools are omitted from
// ListTools and rejected by CallTool with ErrToolNotFound. An empty
// list allows everything and returns r unchanged.
func Allowed(r Registry, names []string) Registry {
	if len(names) == 0 {
		return r
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return &allowedRegistry{next: r, allowed: set}
}

type allowedRegistry struct {
	next    Registry
	allowed map[string]bool
}

func (a *allowedRegistry) ListTools(ctx context.Context) ([]Descriptor, error) {
	descs, err := a.next.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := descs[:0:0]
	for _, d := range descs {
		if a.allowed[d.Name] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (a *allowedRegistry) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if !a.allowed[name] {
		return nil, NewDomainError("tool %s is not in the allowed tools list", name)
	}
	return a.next.CallTool(ctx, name, args)
}
