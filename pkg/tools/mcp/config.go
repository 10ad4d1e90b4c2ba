package mcp

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server, used for logging and
	// for routing tool calls.
	Name string `yaml:"name"`

	// Transport is "sse" or "streamable-http" (the default).
	Transport string `yaml:"transport"`

	// URL is the MCP server endpoint URL.
	URL string `yaml:"url"`

	// Headers are sent with every request, typically a bearer token.
	Headers map[string]string `yaml:"headers"`
}
