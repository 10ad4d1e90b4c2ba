package provider

import "encoding/json"

// ProviderRequest is the backend-facing request.
type ProviderRequest struct {
	Model    string            `json:"model"`
	Messages []ProviderMessage `json:"messages"`
	Tools    []ProviderTool    `json:"tools,omitempty"`
	Stream   bool              `json:"stream,omitempty"`
	User     string            `json:"user,omitempty"`
}

// ProviderMessage represents a message in the provider's conversation format.
type ProviderMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content"`
	ToolCalls  []ProviderToolCall `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	Name       string             `json:"name,omitempty"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ProviderToolCall represents a tool call entry in an assistant message.
type ProviderToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function ProviderFunctionCall `json:"function"`
}

// ProviderFunctionCall holds the function name and arguments for a tool call.
type ProviderFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ProviderTool represents a tool definition in provider format.
type ProviderTool struct {
	Type     string              `json:"type"`
	Function ProviderFunctionDef `json:"function"`
}

// ProviderFunctionDef holds a function definition for tool use.
type ProviderFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Fragment is one partial unit of a streamed model response. A fragment
// carries free text, tool-call pieces, or both. A fragment with Err set
// is the last one on the channel.
type Fragment struct {
	// Content is a piece of assistant free text.
	Content string

	// ToolCalls holds the tool-call pieces carried by this fragment.
	ToolCalls []ToolCallFragment

	// Model is the model that produced the fragment, when reported.
	Model string

	// Err is set if the stream failed after it was opened.
	Err error
}

// ToolCallFragment is a partial tool call. Providers that tag pieces with
// a slot index set Index; providers that do not leave it nil. Name and
// Arguments are pieces to be concatenated, not complete values.
type ToolCallFragment struct {
	Index     *int
	ID        string
	Name      string
	Arguments string

	// Err is set when this element of the chunk could not be decoded.
	// The rest of the chunk is still usable.
	Err error
}

// ModelInfo holds information about a model served by the provider.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// IntPtr returns a pointer to i. Used to build indexed fragments.
func IntPtr(i int) *int {
	return &i
}
