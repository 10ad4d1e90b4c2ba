package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/provider"
)

// maxSlots bounds the tool calls one response may open.
const maxSlots = 128

// slot accumulates the pieces of one streamed tool call.
type slot struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// resolvedCall is a finished tool call ready for execution.
type resolvedCall struct {
	ID           string
	Name         string
	RawArguments string
	Arguments    map[string]any
}

// reconstructor rebuilds the text and tool calls of one streamed
// response from its fragments.
type reconstructor struct {
	slots []*slot
	text  strings.Builder
}

// consume reads ch until it is closed. Text is forwarded as it arrives
// and every fragment that carries tool-call pieces is announced as
// preparing. A stream-level error aborts the response.
func (r *reconstructor) consume(ctx context.Context, ch <-chan provider.Fragment, em *emitter) error {
	for frag := range ch {
		if frag.Err != nil {
			return frag.Err
		}
		if len(frag.ToolCalls) > 0 {
			for _, tc := range frag.ToolCalls {
				r.apply(tc)
			}
			em.emit(ctx, api.ToolCallEvent(api.ToolCallPreparing, ""))
		}
		if frag.Content != "" {
			r.text.WriteString(frag.Content)
			em.emit(ctx, api.TextEvent(frag.Content))
		}
	}
	return nil
}

// target picks the slot a fragment belongs to. An explicit index wins;
// a fresh call id opens a new slot; anything else continues the last one.
func (r *reconstructor) target(tc provider.ToolCallFragment) int {
	switch {
	case tc.Index != nil:
		return *tc.Index
	case tc.ID != "":
		return len(r.slots)
	default:
		return max(0, len(r.slots)-1)
	}
}

func (r *reconstructor) apply(tc provider.ToolCallFragment) {
	if tc.Err != nil {
		debug.Log("engine", "skipping undecodable tool call fragment", "error", tc.Err)
		return
	}
	idx := r.target(tc)
	if idx < 0 || idx >= maxSlots {
		debug.Log("engine", "skipping tool call fragment with bad index", "index", idx)
		return
	}
	for len(r.slots) <= idx {
		r.slots = append(r.slots, &slot{})
	}

	s := r.slots[idx]
	if tc.ID != "" {
		s.id = tc.ID
	}
	s.name.WriteString(tc.Name)
	s.args.WriteString(tc.Arguments)
}

// resolve returns the calls that gathered a name, in slot order.
func (r *reconstructor) resolve() []resolvedCall {
	var calls []resolvedCall
	for _, s := range r.slots {
		name := s.name.String()
		if name == "" {
			continue
		}
		id := s.id
		if id == "" {
			id = api.NewCallID()
		}
		raw := s.args.String()
		calls = append(calls, resolvedCall{
			ID:           id,
			Name:         name,
			RawArguments: raw,
			Arguments:    parseArguments(name, raw),
		})
	}
	return calls
}

// parseArguments decodes a tool call's argument text. Anything that is
// not a JSON object yields an empty map.
func parseArguments(tool, raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		slog.Warn("tool arguments are not a JSON object", "tool", tool, "arguments", debug.Truncate(raw, 200))
		return map[string]any{}
	}
	return args
}
