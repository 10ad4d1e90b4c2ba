package engine

import (
	"strings"

	"github.com/rhuss/todoflow/pkg/provider"
)

// session is the state of one chat turn. It is never shared between turns.
type session struct {
	userID string

	// model is the active model; a fallback switch pins it for the rest
	// of the turn.
	model string

	messages  []provider.ProviderMessage
	tools     []provider.ProviderTool
	iteration int

	// finalText collects the text of every iteration, in the order it
	// was streamed.
	finalText strings.Builder
}

func newSession(userID, model string) *session {
	return &session{userID: userID, model: model}
}

func (s *session) request(model string) *provider.ProviderRequest {
	return &provider.ProviderRequest{
		Model:    model,
		Messages: s.messages,
		Tools:    s.tools,
		Stream:   true,
	}
}
