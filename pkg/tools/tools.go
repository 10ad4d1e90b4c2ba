package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrToolNotFound is returned by CallTool for names no registry serves.
var ErrToolNotFound = errors.New("tool not found")

// Registry lists and invokes tools.
type Registry interface {
	// ListTools returns the descriptors of every callable tool.
	ListTools(ctx context.Context) ([]Descriptor, error)

	// CallTool invokes the named tool. The result is either a string,
	// passed to the model verbatim, or a JSON-serializable value.
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// Descriptor describes a tool to the model.
type Descriptor struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object. It may still carry the
	// user_id property; the engine strips it before the model sees it.
	Parameters json.RawMessage
}

// DomainError is an expected tool failure whose message is safe to show
// the model, such as a missing task.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string { return e.Message }

// NewDomainError creates a DomainError with a formatted message.
func NewDomainError(format string, args ...any) *DomainError {
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err is, or wraps, a DomainError or
// ErrToolNotFound: a failure reported to the model instead of aborting.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de) || errors.Is(err, ErrToolNotFound)
}

// Multi combines registries. Tool names resolve to the first registry
// that lists them.
type Multi []Registry

// ListTools concatenates the descriptors of all registries, dropping
// later duplicates.
func (m Multi) ListTools(ctx context.Context) ([]Descriptor, error) {
	seen := make(map[string]bool)
	var out []Descriptor
	for _, r := range m {
		descs, err := r.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			if seen[d.Name] {
				slog.Warn("duplicate tool name, keeping first registry", "tool", d.Name)
				continue
			}
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// CallTool tries each registry in order until one knows the tool.
func (m Multi) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	for _, r := range m {
		res, err := r.CallTool(ctx, name, args)
		if errors.Is(err, ErrToolNotFound) {
			continue
		}
		return res, err
	}
	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}
