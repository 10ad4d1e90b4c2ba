package engine

import (
	"encoding/json"

	"github.com/rhuss/todoflow/pkg/debug"
	"github.com/rhuss/todoflow/pkg/provider"
	"github.com/rhuss/todoflow/pkg/tools"
)

// identityParam is filled in by the engine and never shown to the model.
const identityParam = "user_id"

// emptySchema stands in for missing or unusable parameter schemas.
var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

func adaptTools(descs []tools.Descriptor) []provider.ProviderTool {
	out := make([]provider.ProviderTool, 0, len(descs))
	for _, d := range descs {
		out = append(out, adaptTool(d))
	}
	return out
}

func adaptTool(d tools.Descriptor) provider.ProviderTool {
	return provider.ProviderTool{
		Type: "function",
		Function: provider.ProviderFunctionDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  hideIdentity(d.Name, d.Parameters),
		},
	}
}

// hideIdentity returns a copy of schema without the identity parameter.
// The input is never modified.
func hideIdentity(tool string, schema json.RawMessage) json.RawMessage {
	var s map[string]any
	if len(schema) == 0 || json.Unmarshal(schema, &s) != nil || len(s) == 0 {
		debug.Log("tools", "using empty parameter schema", "tool", tool)
		return emptySchema
	}

	if props, ok := s["properties"].(map[string]any); ok {
		delete(props, identityParam)
	}
	if req, ok := s["required"].([]any); ok {
		kept := make([]any, 0, len(req))
		for _, r := range req {
			if r != identityParam {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(s, "required")
		} else {
			s["required"] = kept
		}
	}

	out, err := json.Marshal(s)
	if err != nil {
		debug.Log("tools", "using empty parameter schema", "tool", tool, "error", err)
		return emptySchema
	}
	return out
}
