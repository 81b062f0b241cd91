package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default values.
const (
	DefaultMaxRounds      = 5
	DefaultGatewayPort    = 18789
	DefaultGeminiModel    = "gemini-2.0-flash-exp"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultSystemPrompt   = "You are a helpful assistant. Use the available tools when they help answer the user."
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}
