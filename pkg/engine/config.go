package engine

// DefaultFallbackModels are tried in order when the active model reports
// quota exhaustion.
var DefaultFallbackModels = []string{
	"gemini-flash-lite-latest",
	"gemini-pro-latest",
	"gemini-flash-latest",
}

// Config holds configuration for the chat engine.
type Config struct {
	// Model is the model every turn starts with.
	Model string

	// FallbackModels replaces DefaultFallbackModels when non-nil. An empty,
	// non-nil slice disables fallback.
	FallbackModels []string

	// MaxIterations bounds the model calls per turn. Zero or negative
	// means use the default of 5.
	MaxIterations int

	// HistoryLimit is the number of stored turns replayed into the
	// context. Zero or negative means use the default of 20.
	HistoryLimit int

	// SystemPrompt overrides DefaultSystemPrompt when set.
	SystemPrompt string
}

func (c Config) maxIterations() int {
	if c.MaxIterations <= 0 {
		return 5
	}
	return c.MaxIterations
}

func (c Config) historyLimit() int {
	if c.HistoryLimit <= 0 {
		return 20
	}
	return c.HistoryLimit
}

func (c Config) fallbackModels() []string {
	if c.FallbackModels == nil {
		return DefaultFallbackModels
	}
	return c.FallbackModels
}

func (c Config) systemPrompt() string {
	if c.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return c.SystemPrompt
}
