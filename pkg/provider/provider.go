package provider

import (
	"context"

	"github.com/rhuss/todoflow/pkg/api"
)

// Provider abstracts a streaming chat-completion backend. Adapters
// handle their own wire protocol and surface the raw response as a
// sequence of Fragments; reassembling tool calls is left to the engine.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openaicompat").
	Name() string

	// Stream opens a streaming completion. A failure to open the stream
	// is returned directly; quota exhaustion must be reported as an
	// api.APIError of type too_many_requests so callers can detect it
	// with IsQuotaExceeded. The returned channel is closed by the provider
	// when the stream completes or errors.
	Stream(ctx context.Context, req *ProviderRequest) (<-chan Fragment, error)

	// ListModels returns available models from the backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// IsQuotaExceeded reports whether err signals quota or rate-limit
// exhaustion on the backend.
func IsQuotaExceeded(err error) bool {
	return api.IsTooManyRequests(err)
}
