package engine

import (
	"context"
	"fmt"

	"github.com/rhuss/todoflow/pkg/api"
	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/history"
	"github.com/rhuss/todoflow/pkg/provider"
)

// assembleContext builds the opening messages of the turn: the system
// prompt, the recent history oldest first, then the new user message.
// The user message is stored before any model call.
func (e *Engine) assembleContext(ctx context.Context, sess *session, message string) error {
	turns, err := e.history.Recent(ctx, sess.userID, e.cfg.historyLimit())
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	history.SortChronological(turns)

	msgs := make([]provider.ProviderMessage, 0, len(turns)+2)
	msgs = append(msgs, provider.ProviderMessage{
		Role:    provider.RoleSystem,
		Content: e.cfg.systemPrompt(),
	})

	for _, t := range turns {
		switch t.Role {
		case history.RoleUser, history.RoleAssistant:
			msgs = append(msgs, provider.ProviderMessage{Role: t.Role, Content: t.Content})
		case history.RoleTool:
			msgs = append(msgs, provider.ProviderMessage{
				Role:       provider.RoleTool,
				Content:    t.Content,
				ToolCallID: api.HistoryCallID(t.ID),
			})
		default:
			debug.Log("engine", "skipping history turn", "id", t.ID, "role", t.Role)
		}
	}

	msgs = append(msgs, provider.ProviderMessage{Role: provider.RoleUser, Content: message})

	if _, err := e.history.Append(ctx, sess.userID, history.RoleUser, message); err != nil {
		return fmt.Errorf("store user message: %w", err)
	}

	sess.messages = msgs
	return nil
}
