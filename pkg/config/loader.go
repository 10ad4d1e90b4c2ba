package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultOpenAIBase = "https://api.openai.com/v1"
	defaultQwenBase   = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// legacyGeminiModels are rewritten to gemini-flash-latest when a Gemini key
// is detected.
var legacyGeminiModels = []string{
	"gpt-4o",
	"gemini-1.5-flash",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-flash-lite-latest",
}

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, TODOFLOW_CONFIG env, ./config.yaml, /etc/todoflow/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Backend auto-detection
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	detectBackend(&cfg.Engine)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. TODOFLOW_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/todoflow/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("TODOFLOW_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/todoflow/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The
// unprefixed names are the legacy deployment variables; a TODOFLOW_
// variable wins over its legacy counterpart.
func applyEnvOverrides(cfg *Config) {
	// Legacy names first so the prefixed ones override them.
	if v := cleanKey(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		cfg.Engine.BackendURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Engine.Model = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.Postgres.DSN = v
		if os.Getenv("TODOFLOW_STORAGE") == "" {
			cfg.Storage.Type = storageTypeForURL(v)
			if cfg.Storage.Type == "sqlite" {
				cfg.Storage.SQLite.Path = strings.TrimPrefix(v, "sqlite:///")
			}
		}
	}
	if cfg.Logging.Level == "" && os.Getenv("ENVIRONMENT") == "production" {
		cfg.Logging.Level = "info"
	}

	if v := os.Getenv("TODOFLOW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TODOFLOW_PROVIDER"); v != "" {
		cfg.Engine.Provider = v
	}
	if v := os.Getenv("TODOFLOW_BACKEND_URL"); v != "" {
		cfg.Engine.BackendURL = v
	}
	if v := cleanKey(os.Getenv("TODOFLOW_API_KEY")); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := os.Getenv("TODOFLOW_MODEL"); v != "" {
		cfg.Engine.Model = v
	}
	if v := os.Getenv("TODOFLOW_FALLBACK_MODELS"); v != "" {
		cfg.Engine.FallbackModels = splitList(v)
	}
	if v := os.Getenv("TODOFLOW_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxIterations = n
		}
	}
	if v := os.Getenv("TODOFLOW_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.HistoryLimit = n
		}
	}
	if v := os.Getenv("TODOFLOW_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TODOFLOW_STORAGE_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("TODOFLOW_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}
	if v := os.Getenv("TODOFLOW_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("TODOFLOW_DEFAULT_USER"); v != "" {
		cfg.Auth.DefaultUser = v
	}
	if v := os.Getenv("TODOFLOW_JWT_SECRET"); v != "" {
		cfg.Auth.JWT.Secret = v
	}

	// TODOFLOW_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("TODOFLOW_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	if v := os.Getenv("TODOFLOW_TOOLS_MODE"); v != "" {
		cfg.Tools.Mode = v
	}
	if v := os.Getenv("TODOFLOW_MCP_URL"); v != "" {
		cfg.Tools.MCP.URL = v
	}
	if v := os.Getenv("TODOFLOW_DUPLICATE_DONE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Transport.DuplicateDone = b
		}
	}
	if v := os.Getenv("TODOFLOW_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// detectBackend picks a base URL from the key prefix when none is
// configured and maps the default model onto one the backend serves.
func detectBackend(e *EngineConfig) {
	if e.BackendURL != "" {
		return
	}
	switch {
	case strings.HasPrefix(e.APIKey, "s-"):
		e.BackendURL = envOr("QWEN_API_BASE", defaultQwenBase)
		if e.Model == "gpt-4o" {
			e.Model = "qwen-plus"
		}
	case strings.HasPrefix(e.APIKey, "AIza"):
		e.BackendURL = envOr("GEMINI_API_BASE", defaultGeminiBase)
		if slices.Contains(legacyGeminiModels, e.Model) {
			e.Model = "gemini-flash-latest"
		}
	default:
		e.BackendURL = defaultOpenAIBase
	}
}

// storageTypeForURL maps a DATABASE_URL scheme to a storage type.
func storageTypeForURL(u string) string {
	if strings.HasPrefix(u, "sqlite:") {
		return "sqlite"
	}
	return "postgres"
}

// cleanKey strips whitespace and one layer of surrounding quotes, which
// .env files commonly leave on secrets.
func cleanKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.Trim(s, `'`)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if err := resolveFile(&cfg.Engine.APIKey, cfg.Engine.APIKeyFile, "engine.api_key_file"); err != nil {
		return err
	}
	if err := resolveFile(&cfg.Engine.SystemPrompt, cfg.Engine.SystemPromptFile, "engine.system_prompt_file"); err != nil {
		return err
	}
	if err := resolveFile(&cfg.Storage.Postgres.DSN, cfg.Storage.Postgres.DSNFile, "storage.postgres.dsn_file"); err != nil {
		return err
	}
	if err := resolveFile(&cfg.Auth.JWT.Secret, cfg.Auth.JWT.SecretFile, "auth.jwt.secret_file"); err != nil {
		return err
	}
	for i := range cfg.Auth.APIKeys {
		field := fmt.Sprintf("auth.api_keys[%d].key_file", i)
		if err := resolveFile(&cfg.Auth.APIKeys[i].Key, cfg.Auth.APIKeys[i].KeyFile, field); err != nil {
			return err
		}
	}
	return nil
}

func resolveFile(dst *string, path, field string) error {
	if path == "" || *dst != "" {
		return nil
	}
	val, err := readSecretFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = val
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
