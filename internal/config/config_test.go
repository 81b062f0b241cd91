package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, DefaultGeminiModel, cfg.Model.Model)
	assert.Equal(t, 2, cfg.Model.Retries)
	assert.Equal(t, 5, cfg.Agent.MaxRounds)
	assert.Equal(t, DefaultSystemPrompt, cfg.Agent.SystemPrompt)
	assert.Equal(t, 18789, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.Equal(t, "token", cfg.Gateway.Auth.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "pretty", cfg.Logging.ConsoleStyle)
	assert.Equal(t, "INBOX", cfg.Tools.Mail.Mailbox)
	assert.Nil(t, cfg.IRC)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 18789, cfg.Gateway.Port)
	assert.Equal(t, 5, cfg.Agent.MaxRounds)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
model:
  provider: openai
  apiKey: sk-test
  fallbacks:
    - provider: gemini
      model: gemini-1.5-flash
agent:
  maxRounds: 3
  systemPrompt: You are a calculator assistant
embedding:
  provider: gemini
storage:
  cacheDir: /var/cache/models
  quotaBytes: 2000000000
tools:
  enabled: [lookup, weather]
gateway:
  port: 9999
  bind: lan
  auth:
    mode: password
    password: secret123
irc:
  server: irc.libera.chat
  nick: testbot
  channels:
    - "#general"
  useTLS: true
logging:
  level: debug
  consoleStyle: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.Model.Model)
	require.Len(t, cfg.Model.Fallbacks, 1)
	assert.Equal(t, "gemini-1.5-flash", cfg.Model.Fallbacks[0].Model)
	assert.Equal(t, 3, cfg.Agent.MaxRounds)
	assert.Equal(t, "You are a calculator assistant", cfg.Agent.SystemPrompt)
	assert.Equal(t, DefaultEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, "/var/cache/models", cfg.Storage.CacheDir)
	assert.Equal(t, int64(2000000000), cfg.Storage.QuotaBytes)
	assert.Equal(t, []string{"lookup", "weather"}, cfg.Tools.Enabled)
	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "password", cfg.Gateway.Auth.Mode)
	assert.Equal(t, "secret123", cfg.Gateway.Auth.Password)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)

	require.NotNil(t, cfg.IRC)
	assert.Equal(t, "irc.libera.chat", cfg.IRC.Server)
	assert.Equal(t, 6697, cfg.IRC.Port, "TLS default port")
	assert.Equal(t, []string{"#general"}, cfg.IRC.Channels)
}

func TestLoadProviderPicksDefaultModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: openai\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.Model.Model)
}

func TestLoadEnvProviderPicksDefaultModel(t *testing.T) {
	t.Setenv("AGENTLOOP_PROVIDER", "openai")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, cfg.Model.Model)
}

func TestLoadExplicitModelKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: openai\n  model: gpt-4o\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Model.Model)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGENTLOOP_GATEWAY_PORT", "12345")
	t.Setenv("AGENTLOOP_LOG_LEVEL", "DEBUG")
	t.Setenv("AGENTLOOP_MAX_ROUNDS", "8")
	t.Setenv("AGENTLOOP_PROVIDER", "ollama")
	t.Setenv("AGENTLOOP_MODEL", "llama3")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 12345, cfg.Gateway.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Agent.MaxRounds)
	assert.Equal(t, "ollama", cfg.Model.Provider)
	assert.Equal(t, "llama3", cfg.Model.Model)
}

func TestLoadExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "g-key")
	t.Setenv("TEST_DO_TOKEN", "do-token")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
model:
  apiKey: ${TEST_GEMINI_KEY}
tools:
  digitalocean:
    token: ${TEST_DO_TOKEN}
  mail:
    password: ${TEST_UNSET_VAR_XYZ}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.Model.APIKey)
	assert.Equal(t, "do-token", cfg.Tools.DigitalOcean.Token)
	assert.Equal(t, "${TEST_UNSET_VAR_XYZ}", cfg.Tools.Mail.Password)
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"gateway": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := KeyPath{"gateway", "port"}.Lookup(loaded)
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}

func TestLoadRawEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.NotNil(t, raw)
	assert.Empty(t, raw)
}
