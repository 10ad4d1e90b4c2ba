package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/auth"
	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/observability"
	"github.com/rhuss/todoflow/pkg/provider"
	"github.com/rhuss/todoflow/pkg/transport"
)

// ModelLister lists the models served by the configured backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]provider.ModelInfo, error)
}

// Adapter serves the chat API over HTTP.
// It routes requests to the chat runner and the history store and
// serializes their results.
type Adapter struct {
	runner  transport.ChatRunner
	history history.Store
	models  ModelLister
	health  func(context.Context) error
	authn   func(http.Handler) http.Handler
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// DuplicateDone writes the [DONE] sentinel twice at the end of a stream.
	DuplicateDone bool

	// MetricsPath mounts the Prometheus handler; empty disables it.
	MetricsPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
		MetricsPath: "/metrics",
	}
}

// AdapterOption configures optional collaborators of an Adapter.
type AdapterOption func(*Adapter)

// WithModelLister enables GET /api/models.
func WithModelLister(m ModelLister) AdapterOption {
	return func(a *Adapter) { a.models = m }
}

// WithHealthCheck makes /healthz report the given check.
func WithHealthCheck(fn func(context.Context) error) AdapterOption {
	return func(a *Adapter) { a.health = fn }
}

// WithAuth wraps every /api route with the given authentication middleware.
// Health and metrics endpoints are never authenticated.
func WithAuth(mw func(http.Handler) http.Handler) AdapterOption {
	return func(a *Adapter) { a.authn = mw }
}

// NewAdapter creates an HTTP adapter for the given runner and history store.
// Middleware is applied to the runner in the given order.
func NewAdapter(runner transport.ChatRunner, hist history.Store, cfg Config, opts []AdapterOption, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		runner = transport.Chain(middlewares...)(runner)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		runner:  runner,
		history: hist,
		mux:     http.NewServeMux(),
		config:  cfg,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.handleAPI("POST /api/chat/stream", a.handleChatStream)
	a.handleAPI("POST /api/chat", a.handleChat)
	a.handleAPI("GET /api/chat/history", a.handleGetHistory)
	a.handleAPI("DELETE /api/chat/history", a.handleClearHistory)
	a.handleAPI("GET /api/models", a.handleListModels)

	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	return a
}

func (a *Adapter) handleAPI(pattern string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if a.authn != nil {
		h = a.authn(h)
	}
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// request ID propagation and request metrics.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(observability.MetricsMiddleware(a.mux))
}

// httpRequestIDMiddleware propagates the X-Request-ID header into the
// context and echoes the effective request ID on the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// chatRequest is the optional JSON body of the chat endpoints.
type chatRequest struct {
	Message string `json:"message"`
}

// chatMessage is the wire form of a stored turn.
type chatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func toChatMessage(m history.Message) chatMessage {
	return chatMessage{ID: m.ID, Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
}

// handleChatStream handles POST /api/chat/stream.
func (a *Adapter) handleChatStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	message, ok := a.readMessage(w, r)
	if !ok {
		return
	}

	// A client disconnect only stops delivery; the turn still completes
	// and is persisted.
	ctx := context.WithoutCancel(r.Context())

	sw := newSSEEventWriter(w, a.config.DuplicateDone)
	a.runner.Run(ctx, userID, message, sw)

	if !sw.hasStartedStreaming() {
		transport.WriteAPIError(w, api.NewServerError("chat produced no events"))
	}
}

// handleChat handles POST /api/chat. It drains the event stream and
// answers with the reply text of this turn. The persisted assistant turn
// supplies id and timestamp when it can be matched to this request.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	message, ok := a.readMessage(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	var reply strings.Builder
	var last string
	a.runner.Run(ctx, userID, message, transport.EventWriterFunc(func(_ context.Context, ev api.ChatEvent) error {
		if ev.Type == api.EventText {
			reply.WriteString(ev.Content)
			last = ev.Content
		}
		return nil
	}))

	// The failure text is always the last text event of a turn.
	if msg, failed := strings.CutPrefix(last, aiErrorPrefix); failed {
		transport.WriteAPIError(w, api.NewModelError(msg))
		return
	}
	content := reply.String()
	if content == "" {
		transport.WriteAPIError(w, api.NewServerError("chat produced no reply"))
		return
	}

	out := chatMessage{Role: history.RoleAssistant, Content: content, Timestamp: time.Now().UTC()}
	if m, ok := a.persistedReply(ctx, userID, message, content); ok {
		out = toChatMessage(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// aiErrorPrefix marks the text event the engine emits for a failed turn.
const aiErrorPrefix = "AI Error: "

// persistedReply finds the assistant turn storing content that follows
// the user turn for message.
func (a *Adapter) persistedReply(ctx context.Context, userID, message, content string) (history.Message, bool) {
	msgs, err := a.history.Recent(ctx, userID, history.DefaultLimit)
	if err != nil {
		return history.Message{}, false
	}
	history.SortChronological(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != history.RoleUser || msgs[i].Content != message {
			continue
		}
		for _, m := range msgs[i+1:] {
			if m.Role == history.RoleAssistant && m.Content == content {
				return m, true
			}
		}
		break
	}
	return history.Message{}, false
}

// handleGetHistory handles GET /api/chat/history.
func (a *Adapter) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := history.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			transport.WriteAPIError(w, api.NewInvalidRequestError("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	msgs, err := a.history.Recent(r.Context(), userID, limit)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	history.SortChronological(msgs)
	msgs = history.WithoutRole(msgs, history.RoleTool)

	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toChatMessage(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleClearHistory handles DELETE /api/chat/history.
func (a *Adapter) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	n, err := a.history.Clear(r.Context(), userID)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// handleListModels handles GET /api/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	if a.models == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "model listing is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	models, err := a.models.ListModels(r.Context())
	if err != nil {
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) {
			apiErr = api.NewModelError(err.Error())
		}
		transport.WriteAPIError(w, apiErr)
		return
	}
	if models == nil {
		models = []provider.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": models})
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unhealthy: " + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// requireUser resolves the caller from the authenticated identity.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
	}
	return userID, ok
}

// readMessage takes the message from the "message" query parameter or,
// failing that, from a JSON body.
func (a *Adapter) readMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	message := r.URL.Query().Get("message")

	if message == "" && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
		var req chatRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		switch {
		case err == nil:
			message = req.Message
		case errors.Is(err, io.EOF):
		default:
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				transport.WriteErrorResponse(w,
					api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
					http.StatusRequestEntityTooLarge,
				)
				return "", false
			}
			transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
			return "", false
		}
	}

	if strings.TrimSpace(message) == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("message", "message is required"))
		return "", false
	}
	return message, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
