// Package config provides unified configuration for the todoflow server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (TODOFLOW_ prefix and legacy names)
//  4. File reference resolution (_file suffix fields)
//  5. Backend auto-detection from the API key prefix
//  6. Validation
package config

import "time"

// Config holds all configuration for the todoflow server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Tools         ToolsConfig         `yaml:"tools"`
	Transport     TransportConfig     `yaml:"transport"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8000
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 0 (streams are long-lived)
	MaxBodySize  int64         `yaml:"max_body_size"` // default: 1MB
}

// EngineConfig holds model backend and agent loop settings.
type EngineConfig struct {
	Provider         string        `yaml:"provider"`     // "openaicompat" or "openai", default: "openaicompat"
	BackendURL       string        `yaml:"backend_url"`  // auto-detected when empty
	APIKey           string        `yaml:"api_key"`      // optional
	APIKeyFile       string        `yaml:"api_key_file"` // _file variant for api_key
	Model            string        `yaml:"model"`        // default: "gpt-4o"
	FallbackModels   []string      `yaml:"fallback_models"`
	MaxIterations    int           `yaml:"max_iterations"` // default: 5
	HistoryLimit     int           `yaml:"history_limit"`  // default: 20
	Timeout          time.Duration `yaml:"timeout"`        // default: 120s
	SystemPrompt     string        `yaml:"system_prompt"`
	SystemPromptFile string        `yaml:"system_prompt_file"` // _file variant for system_prompt
}

// StorageConfig holds history and task persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres" or "sqlite", default: "memory"
	MaxSize  int            `yaml:"max_size"` // per-user history cap for memory, default: 1000
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MinConns       int32  `yaml:"min_conns"`        // default: 0
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// SQLiteConfig holds embedded database settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "todoflow.db"
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type        string         `yaml:"type"`         // "none", "apikey" or "jwt", default: "none"
	APIKeys     []APIKeyConfig `yaml:"api_keys"`     // entries for type=apikey
	JWT         JWTConfig      `yaml:"jwt"`          // settings for type=jwt
	DefaultUser string         `yaml:"default_user"` // subject for type=none, default: "anonymous"
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	JWKSURL    string `yaml:"jwks_url"`
	Secret     string `yaml:"secret"`      // HS256 shared secret
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	UserClaim  string `yaml:"user_claim"`  // default: "sub"
}

// ToolsConfig selects where the agent's tools come from.
type ToolsConfig struct {
	Mode    string    `yaml:"mode"` // "builtin", "mcp" or "both", default: "builtin"
	MCP     MCPConfig `yaml:"mcp"`
	Allowed []string  `yaml:"allowed"` // empty means every tool
}

// MCPConfig describes the remote tool server for mode=mcp and mode=both.
type MCPConfig struct {
	URL       string            `yaml:"url"`
	Transport string            `yaml:"transport"` // "sse" or "streamable-http"
	Headers   map[string]string `yaml:"headers"`
}

// TransportConfig holds stream framing settings.
type TransportConfig struct {
	DuplicateDone bool `yaml:"duplicate_done"` // send the [DONE] sentinel twice
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig controls slog output and debug categories.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error; empty derives from ENVIRONMENT
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			ReadTimeout: 30 * time.Second,
			MaxBodySize: 1 << 20,
		},
		Engine: EngineConfig{
			Provider:      "openaicompat",
			Model:         "gpt-4o",
			MaxIterations: 5,
			HistoryLimit:  20,
			Timeout:       120 * time.Second,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns:       25,
				MigrateOnStart: true,
			},
			SQLite: SQLiteConfig{
				Path: "todoflow.db",
			},
		},
		Auth: AuthConfig{
			Type:        "none",
			DefaultUser: "anonymous",
			JWT: JWTConfig{
				UserClaim: "sub",
			},
		},
		Tools: ToolsConfig{
			Mode: "builtin",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Format: "text",
		},
	}
}
