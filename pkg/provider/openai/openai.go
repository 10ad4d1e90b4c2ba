// Package openai implements provider.Provider on top of the official
// openai-go SDK. It is an alternative to openaicompat for deployments
// that prefer the SDK's request building and error types.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/provider"
)

// Config holds the SDK backend settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Provider streams chat completions through the openai-go client.
type Provider struct {
	client openai.Client
}

var _ provider.Provider = (*Provider)(nil)

// New creates an SDK-backed provider. SDK retries are disabled so that a
// 429 reaches the engine's fallback selector immediately.
func New(cfg Config) *Provider {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Provider{client: openai.NewClient(opts...)}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Stream opens a streaming completion. The first chunk is read before
// returning so that HTTP failures (including quota errors) surface as the
// Stream error rather than mid-stream.
func (p *Provider) Stream(ctx context.Context, req *provider.ProviderRequest) (<-chan provider.Fragment, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, api.NewServerError(err.Error())
	}

	debug.Log("providers", "opening sdk stream", "model", req.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	first := stream.Next()
	if !first {
		if err := stream.Err(); err != nil {
			stream.Close()
			return nil, mapError(err)
		}
	}

	ch := make(chan provider.Fragment, 16)
	go func() {
		defer close(ch)
		defer stream.Close()

		for ok := first; ok; ok = stream.Next() {
			frag, keep := translateChunk(stream.Current())
			if !keep {
				continue
			}
			select {
			case ch <- frag:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- provider.Fragment{Err: mapError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// ListModels returns the first page of models reported by the backend.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	models := make([]provider.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, provider.ModelInfo{
			ID:      m.ID,
			Object:  string(m.Object),
			OwnedBy: m.OwnedBy,
		})
	}
	return models, nil
}

// Close is a no-op; the SDK client holds no resources of its own.
func (p *Provider) Close() error {
	return nil
}

func buildParams(req *provider.ProviderRequest) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: buildMessages(req.Messages),
	}
	if len(req.Tools) == 0 {
		return params, nil
	}

	tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
	for _, t := range req.Tools {
		var schema openai.FunctionParameters
		if len(t.Function.Parameters) > 0 {
			if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
				return params, fmt.Errorf("tool %s: invalid parameters: %w", t.Function.Name, err)
			}
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  schema,
			},
		})
	}
	params.Tools = tools
	return params, nil
}

func buildMessages(msgs []provider.ProviderMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case provider.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case provider.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case provider.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: calls,
			}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		}
	}
	return out
}

func translateChunk(ck openai.ChatCompletionChunk) (provider.Fragment, bool) {
	if len(ck.Choices) == 0 {
		return provider.Fragment{}, false
	}
	delta := ck.Choices[0].Delta
	frag := provider.Fragment{
		Model:   ck.Model,
		Content: delta.Content,
	}
	for _, tc := range delta.ToolCalls {
		tf := provider.ToolCallFragment{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		// Some backends omit index; the zero value must not pin slot 0.
		if tc.JSON.Index.Valid() {
			tf.Index = provider.IntPtr(int(tc.Index))
		}
		frag.ToolCalls = append(frag.ToolCalls, tf)
	}
	if frag.Content == "" && len(frag.ToolCalls) == 0 {
		return provider.Fragment{}, false
	}
	return frag, true
}

// mapError converts SDK errors into APIErrors. HTTP 429 becomes a
// too_many_requests error so the engine can fall back to another model.
func mapError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return api.NewServerError(fmt.Sprintf("backend connection error: %s", err.Error()))
	}
	message := apiErr.Message
	if message == "" {
		message = fmt.Sprintf("backend error (HTTP %d)", apiErr.StatusCode)
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return api.NewTooManyRequestsError(message)
	case apiErr.StatusCode == http.StatusBadRequest:
		return api.NewInvalidRequestError("", message)
	case apiErr.StatusCode == http.StatusNotFound:
		return api.NewNotFoundError(message)
	default:
		return api.NewServerError(message)
	}
}
