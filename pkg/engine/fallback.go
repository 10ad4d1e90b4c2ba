package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/observability"
	"github.com/rhuss/todoflow/pkg/provider"
)

// openStream opens a model stream for the current context. If the active
// model is out of quota, the fallback models are tried in order and the
// first one that opens becomes the session's model. When none does, the
// original error is returned.
func (e *Engine) openStream(ctx context.Context, sess *session) (<-chan provider.Fragment, error) {
	ch, err := e.tryOpen(ctx, sess, sess.model)
	if err == nil {
		return ch, nil
	}
	if !provider.IsQuotaExceeded(err) {
		return nil, err
	}

	failed := sess.model
	slog.Warn("model quota exhausted, trying fallbacks", "model", failed)

	for _, candidate := range e.cfg.fallbackModels() {
		if candidate == failed {
			continue
		}
		ch, cerr := e.tryOpen(ctx, sess, candidate)
		if cerr != nil {
			debug.Log("engine", "fallback model failed", "model", candidate, "error", cerr)
			continue
		}

		slog.Warn("switched to fallback model", "from", failed, "to", candidate)
		observability.ModelFallbacksTotal.WithLabelValues(failed, candidate).Inc()
		sess.model = candidate
		return ch, nil
	}

	return nil, err
}

func (e *Engine) tryOpen(ctx context.Context, sess *session, model string) (<-chan provider.Fragment, error) {
	start := time.Now()
	ch, err := e.provider.Stream(ctx, sess.request(model))

	status := "success"
	if err != nil {
		status = "error"
		if provider.IsQuotaExceeded(err) {
			status = "quota_exceeded"
		}
	}
	name := e.provider.Name()
	observability.ProviderRequestsTotal.WithLabelValues(name, model, status).Inc()
	observability.ProviderLatency.WithLabelValues(name, model).Observe(time.Since(start).Seconds())

	return ch, err
}
