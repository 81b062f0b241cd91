package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${NAME} references. Unset names stay literal.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if val, ok := os.LookupEnv(envRef.FindStringSubmatch(ref)[1]); ok {
			return val
		}
		return ref
	})
}

// secrets lists the credential fields that may be written as ${ENV_VAR}.
func (c *Config) secrets() []*string {
	s := []*string{
		&c.Model.APIKey,
		&c.Embedding.APIKey,
		&c.Gateway.Auth.Token,
		&c.Gateway.Auth.Password,
		&c.Tools.Mail.Password,
		&c.Tools.DigitalOcean.Token,
	}
	if c.IRC != nil {
		s = append(s, &c.IRC.Password)
	}
	return s
}

// Load reads the config file, applies environment overrides, then fills
// whatever is still unset with defaults. Missing files produce defaults
// only. Provider-specific defaults follow the provider finally chosen.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return Defaults(), err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	for _, field := range cfg.secrets() {
		*field = expandEnvVars(*field)
	}
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "gemini"
	}
	if cfg.Model.Model == "" {
		switch cfg.Model.Provider {
		case "openai":
			cfg.Model.Model = DefaultOpenAIModel
		case "gemini":
			cfg.Model.Model = DefaultGeminiModel
		}
	}
	if cfg.Model.Retries == 0 {
		cfg.Model.Retries = 2
	}
	if cfg.Agent.MaxRounds == 0 {
		cfg.Agent.MaxRounds = DefaultMaxRounds
	}
	if cfg.Agent.SystemPrompt == "" {
		cfg.Agent.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "agentloop"
	}
	if cfg.Embedding.Provider == "gemini" && cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Tools.Weather.UserAgent == "" {
		cfg.Tools.Weather.UserAgent = "agentloop/1.0"
	}
	if cfg.Tools.Mail.Mailbox == "" {
		cfg.Tools.Mail.Mailbox = "INBOX"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultGatewayPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if cfg.IRC != nil && cfg.IRC.Port == 0 {
		if cfg.IRC.UseTLS {
			cfg.IRC.Port = 6697
		} else {
			cfg.IRC.Port = 6667
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// envOverrides maps AGENTLOOP_* variables onto config fields. Values that
// fail to parse are ignored.
var envOverrides = map[string]func(*Config, string){
	"AGENTLOOP_PROVIDER":     func(c *Config, v string) { c.Model.Provider = v },
	"AGENTLOOP_MODEL":        func(c *Config, v string) { c.Model.Model = v },
	"AGENTLOOP_API_KEY":      func(c *Config, v string) { c.Model.APIKey = v },
	"AGENTLOOP_MAX_ROUNDS":   func(c *Config, v string) { setInt(&c.Agent.MaxRounds, v) },
	"AGENTLOOP_GATEWAY_PORT": func(c *Config, v string) { setInt(&c.Gateway.Port, v) },
	"AGENTLOOP_GATEWAY_BIND": func(c *Config, v string) { c.Gateway.Bind = v },
	"AGENTLOOP_LOG_LEVEL":    func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) },
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func applyEnvOverrides(cfg *Config) {
	for name, apply := range envOverrides {
		if v := os.Getenv(name); v != "" {
			apply(cfg, v)
		}
	}
}
