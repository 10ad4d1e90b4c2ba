package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/provider"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// defaultTimeout bounds non-streaming calls such as ListModels.
const defaultTimeout = 120 * time.Second

// Client talks to an OpenAI-compatible Chat Completions backend. The base
// URL includes the version segment (".../v1", or Gemini's
// ".../v1beta/openai"); "/chat/completions" and "/models" are appended.
type Client struct {
	baseURL string
	apiKey  string

	// httpClient carries the configured timeout. streamClient has none:
	// a tool-calling stream may outlive any fixed deadline, so the
	// request context governs it instead.
	httpClient   *http.Client
	streamClient *http.Client
}

var _ provider.Provider = (*Client)(nil)

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL and
// a zero timeout selects two minutes.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "openaicompat"
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, api.NewServerError("building backend request: " + err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// Stream opens a streaming chat completion and returns its fragments.
// The channel is closed when the backend sends [DONE], the body ends or
// ctx is cancelled. A mid-stream failure arrives as a final Fragment
// with Err set.
func (c *Client) Stream(ctx context.Context, req *provider.ProviderRequest) (<-chan provider.Fragment, error) {
	streamed := *req
	streamed.Stream = true

	body, err := json.Marshal(TranslateToChat(&streamed))
	if err != nil {
		return nil, api.NewServerError("encoding chat request: " + err.Error())
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	debug.Log("providers", "opening stream",
		"model", req.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, networkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	ch := make(chan provider.Fragment, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		ParseSSEStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// ListModels queries /models.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var list ChatModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, api.NewServerError("decoding models response: " + err.Error())
	}
	models := make([]provider.ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, Object: m.Object, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// Close drops idle backend connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
