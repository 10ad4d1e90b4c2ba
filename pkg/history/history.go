// Package history defines the conversation history contract used by the
// engine and the HTTP transport. Storage adapters in pkg/storage implement
// Store; this package holds only the types and the interface.
package history

import (
	"context"
	"sort"
	"time"
)

// Stored roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// DefaultLimit is the number of turns returned by the history endpoint
// when the caller does not ask for a specific window.
const DefaultLimit = 15

// Message is one stored conversation turn.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists conversation turns per user. Implementations must be
// safe for concurrent use; each call is atomic on its own.
type Store interface {
	// Append stores a new turn with the current time as its timestamp.
	Append(ctx context.Context, userID, role, content string) (*Message, error)

	// Recent returns up to limit of the user's most recent turns. The
	// order is implementation-defined (usually newest first); callers
	// that need chronological order use SortChronological.
	Recent(ctx context.Context, userID string, limit int) ([]Message, error)

	// Clear deletes all of the user's turns and returns how many were removed.
	Clear(ctx context.Context, userID string) (int, error)
}

// SortChronological orders msgs oldest first, in place. The sort is
// stable, so turns with equal timestamps keep their relative order.
func SortChronological(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// WithoutRole returns msgs with every turn of the given role removed.
func WithoutRole(msgs []Message, role string) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != role {
			out = append(out, m)
		}
	}
	return out
}
