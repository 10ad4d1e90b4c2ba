package api

import (
	"strings"

	"github.com/google/uuid"
)

const (
	callIDPrefix = "call_"
	callIDLength = 12
)

// NewCallID generates a tool call ID for calls the model left unnamed:
// "call_" followed by 12 lowercase hex characters.
func NewCallID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return callIDPrefix + hex[:callIDLength]
}

// HistoryCallID returns the placeholder tool call ID used when a stored
// tool turn is replayed into a model context without its original call.
func HistoryCallID(messageID string) string {
	return "history_" + messageID
}
