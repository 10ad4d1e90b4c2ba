package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Every problem is reported, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be >= 0, got %d", c.Server.MaxBodySize))
	}

	switch c.Engine.Provider {
	case "openaicompat", "openai":
	default:
		errs = append(errs, fmt.Errorf("engine.provider must be \"openaicompat\" or \"openai\", got %q", c.Engine.Provider))
	}
	if c.Engine.BackendURL == "" {
		errs = append(errs, fmt.Errorf("engine.backend_url is required"))
	}
	if c.Engine.Model == "" {
		errs = append(errs, fmt.Errorf("engine.model is required"))
	}
	if c.Engine.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("engine.max_iterations must be >= 1, got %d", c.Engine.MaxIterations))
	}
	if c.Engine.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("engine.history_limit must be >= 1, got %d", c.Engine.HistoryLimit))
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", or \"sqlite\", got %q", c.Storage.Type))
	}

	switch c.Auth.Type {
	case "none":
		if c.Auth.DefaultUser == "" {
			errs = append(errs, fmt.Errorf("auth.default_user is required when auth.type is \"none\""))
		}
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].key is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" && c.Auth.JWT.Secret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.jwks_url or auth.jwt.secret is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	switch c.Tools.Mode {
	case "builtin":
	case "mcp", "both":
		if c.Tools.MCP.URL == "" {
			errs = append(errs, fmt.Errorf("tools.mcp.url is required when tools.mode is %q", c.Tools.Mode))
		}
	default:
		errs = append(errs, fmt.Errorf("tools.mode must be \"builtin\", \"mcp\", or \"both\", got %q", c.Tools.Mode))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
