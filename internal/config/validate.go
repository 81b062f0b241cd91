package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// KnownTools lists the built-in tool names accepted in tools.enabled.
var KnownTools = []string{"lookup", "weather", "fetch_url", "mail_inbox", "droplets", "drive_search", "storage_status"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Model
	validProviders := []string{"gemini", "openai", "ollama", "mock"}
	if !slices.Contains(validProviders, cfg.Model.Provider) {
		add("model.provider", "must be one of %v, got %q", validProviders, cfg.Model.Provider)
	}
	if (cfg.Model.Provider == "gemini" || cfg.Model.Provider == "openai") && cfg.Model.APIKey == "" {
		add("model.apiKey", "required for provider %q", cfg.Model.Provider)
	}
	if cfg.Model.Provider == "ollama" && cfg.Model.Model == "" {
		add("model.model", "required for provider \"ollama\"")
	}
	for i, fb := range cfg.Model.Fallbacks {
		if !slices.Contains(validProviders, fb.Provider) {
			add(fmt.Sprintf("model.fallbacks[%d].provider", i), "must be one of %v, got %q", validProviders, fb.Provider)
		}
	}
	if cfg.Model.Retries < 0 {
		add("model.retries", "must be >= 0, got %d", cfg.Model.Retries)
	}

	// Agent
	if cfg.Agent.MaxRounds <= 0 {
		add("agent.maxRounds", "must be >= 1, got %d", cfg.Agent.MaxRounds)
	}
	if cfg.Agent.Temperature != nil && (*cfg.Agent.Temperature < 0 || *cfg.Agent.Temperature > 2) {
		add("agent.temperature", "must be between 0 and 2, got %v", *cfg.Agent.Temperature)
	}

	// Embedding
	validEmbedders := []string{"", "gemini", "openai", "ollama"}
	if !slices.Contains(validEmbedders, cfg.Embedding.Provider) {
		add("embedding.provider", "must be one of %v, got %q", validEmbedders, cfg.Embedding.Provider)
	}
	if cfg.Embedding.Provider != "" && cfg.Embedding.Provider != "ollama" && cfg.Embedding.APIKey == "" && cfg.Model.APIKey == "" {
		add("embedding.apiKey", "required when embedding.provider is set")
	}

	// Storage
	if cfg.Storage.QuotaBytes < 0 {
		add("storage.quotaBytes", "must be >= 0, got %d", cfg.Storage.QuotaBytes)
	}

	// Tools
	for i, name := range cfg.Tools.Enabled {
		if !slices.Contains(KnownTools, name) {
			add(fmt.Sprintf("tools.enabled[%d]", i), "unknown tool %q", name)
		}
	}
	if slices.Contains(cfg.Tools.Enabled, "mail_inbox") && cfg.Tools.Mail.Server == "" {
		add("tools.mail.server", "required when mail_inbox is enabled")
	}
	if slices.Contains(cfg.Tools.Enabled, "droplets") && cfg.Tools.DigitalOcean.Token == "" {
		add("tools.digitalocean.token", "required when droplets is enabled")
	}
	if slices.Contains(cfg.Tools.Enabled, "drive_search") && cfg.Tools.Drive.CredentialsFile == "" {
		add("tools.drive.credentialsFile", "required when drive_search is enabled")
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is \"custom\"")
	}
	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}

	// IRC (only if configured)
	if cfg.IRC != nil {
		irc := cfg.IRC
		if irc.Server == "" {
			add("irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("irc.sasl", "SASL requires a password to be set")
		}
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
