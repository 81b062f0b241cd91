package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "test-provider"}
	reg.Register("test-provider", mock)

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
	assert.True(t, reg.Has("test-provider"))
	assert.False(t, reg.Has("other"))
}

func TestRegistryRoute(t *testing.T) {
	reg := NewRegistry(silentLog())

	reg.Register("gemini", &MockClient{ProviderName: "gemini"})
	reg.Route("gemini-2.0-flash-exp", "gemini")

	client, err := reg.Resolve("gemini-2.0-flash-exp")
	require.NoError(t, err)
	assert.Equal(t, "gemini", client.Name())
}

func TestRegistryDefault(t *testing.T) {
	reg := NewRegistry(silentLog())

	reg.Register("default-llm", &MockClient{ProviderName: "default-llm"})
	reg.SetDefault("default-llm")

	client, err := reg.Resolve("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, err := reg.Resolve("nonexistent")
	assert.ErrorIs(t, err, ErrNoProvider)

	reg.Route("orphan", "missing-provider")
	_, err = reg.Resolve("orphan")
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRegistryProviders(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a"})

	assert.Equal(t, []string{"a", "b"}, reg.Providers())
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.ModelConfig{
		Provider: "mock",
		Model:    "echo",
		Fallbacks: []config.FallbackModel{
			{Provider: "ollama", Model: "llama3"},
			{Provider: "mock", Model: "echo-2"},
		},
	}
	reg, err := NewRegistryFromConfig(context.Background(), cfg, silentLog())
	require.NoError(t, err)

	assert.Equal(t, []string{"mock", "ollama"}, reg.Providers())

	c, err := reg.Resolve("llama3")
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Name())

	c, err = reg.Resolve("echo-2")
	require.NoError(t, err)
	assert.Equal(t, "mock", c.Name())

	c, err = reg.Resolve("anything-else")
	require.NoError(t, err)
	assert.Equal(t, "mock", c.Name())
}

func TestNewRegistryFromConfigMissingKey(t *testing.T) {
	_, err := NewRegistryFromConfig(context.Background(), config.ModelConfig{Provider: "openai"}, silentLog())
	require.Error(t, err)
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)

	_, err = NewRegistryFromConfig(context.Background(), config.ModelConfig{Provider: "gemini"}, silentLog())
	assert.ErrorAs(t, err, &pe)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), "anthropic", "k", "m", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown LLM provider")
}

// --- Mock clients ---

func TestMockClientComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "test",
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{Content: "echo: " + req.Messages[0].Content}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.Content)
	assert.True(t, resp.Final())
}

func TestMockClientDefaultComplete(t *testing.T) {
	mock := &MockClient{ProviderName: "default"}
	resp, err := mock.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Content)
}

func TestScriptedClient(t *testing.T) {
	sc := NewScriptedClient(
		&CompletionResponse{ToolCalls: []ToolCall{{ID: "1", Name: "lookup"}}},
		&CompletionResponse{Content: "done"},
	)

	r1, err := sc.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.False(t, r1.Final())

	r2, err := sc.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "done", r2.Content)

	_, err = sc.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)

	assert.Equal(t, 3, sc.Calls())
	assert.Equal(t, "q", sc.Requests()[0].Messages[0].Content)
}

func TestEchoClient(t *testing.T) {
	resp, err := EchoClient{}.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "reply"},
			{Role: RoleTool, Content: "tool output", ToolCallID: "1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "tool output", resp.Content)
	assert.Equal(t, "mock", EchoClient{}.Name())
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}
	u.Add(Usage{InputTokens: 3, OutputTokens: 2})
	assert.Equal(t, Usage{InputTokens: 13, OutputTokens: 7}, u)
}

func TestShouldFailover(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"401", &ProviderError{Code: 401}, true},
		{"429", &ProviderError{Code: 429}, true},
		{"500", &ProviderError{Code: 500}, true},
		{"529", &ProviderError{Code: 529}, true},
		{"400", &ProviderError{Code: 400, Message: "bad request"}, false},
		{"wrapped 503", fmt.Errorf("round 2: %w", &ProviderError{Code: 503}), true},
		{"overloaded", errors.New("server overloaded"), true},
		{"rate limit", errors.New("Rate Limit exceeded"), true},
		{"timeout", errors.New("request timeout"), true},
		{"other", errors.New("invalid argument"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldFailover(tt.err))
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(&ProviderError{Code: 401}))
	assert.False(t, ShouldRetry(&ProviderError{Code: 403}))
	assert.True(t, ShouldRetry(&ProviderError{Code: 503}))
	assert.True(t, ShouldRetry(errors.New("capacity exceeded")))
	assert.False(t, ShouldRetry(nil))
}

func TestProviderErrorFormat(t *testing.T) {
	tests := []struct {
		err  ProviderError
		want string
	}{
		{ProviderError{Provider: "a", Message: "fail", Code: 500}, "a: 500 fail"},
		{ProviderError{Provider: "b", Message: "oops"}, "b: oops"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error(), fmt.Sprintf("%+v", tt.err))
	}
}

func TestProviderErrorAs(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", &ProviderError{Provider: "openai", Code: 429, Message: "slow down"})
	var pe *ProviderError
	require.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, 429, pe.Code)
}
