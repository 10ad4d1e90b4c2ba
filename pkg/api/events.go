package api

// ChatEventType identifies the type of a chat stream event.
type ChatEventType string

const (
	EventText     ChatEventType = "text"
	EventToolCall ChatEventType = "tool_call"

	// EventDone is the terminal sentinel. It is rendered on the wire as
	// "data: [DONE]" rather than as a JSON record.
	EventDone ChatEventType = "done"
)

// ToolCallStatus is the progress stage reported by a tool_call event.
type ToolCallStatus string

const (
	ToolCallPreparing ToolCallStatus = "preparing"
	ToolCallExecuting ToolCallStatus = "executing"
)

// ChatEvent is a single progress event emitted while the engine handles
// one user message.
type ChatEvent struct {
	Type    ChatEventType  `json:"type"`
	Content string         `json:"content,omitempty"`
	Status  ToolCallStatus `json:"status,omitempty"`
	Tool    string         `json:"tool,omitempty"`
}

// TextEvent returns a text event carrying content.
func TextEvent(content string) ChatEvent {
	return ChatEvent{Type: EventText, Content: content}
}

// ToolCallEvent returns a tool_call event. tool may be empty while the
// call is still being assembled.
func ToolCallEvent(status ToolCallStatus, tool string) ChatEvent {
	return ChatEvent{Type: EventToolCall, Status: status, Tool: tool}
}

// DoneEvent returns the terminal sentinel event.
func DoneEvent() ChatEvent {
	return ChatEvent{Type: EventDone}
}

// IsTerminal reports whether the event ends the stream.
func (e ChatEvent) IsTerminal() bool {
	return e.Type == EventDone
}
