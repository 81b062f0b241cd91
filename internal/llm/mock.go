package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response"}, nil
}

// ScriptedClient replays a fixed sequence of responses and records every
// request it receives. It errors once the script is exhausted.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []*CompletionResponse
	requests  []CompletionRequest
}

// NewScriptedClient returns a client that answers with responses in order.
func NewScriptedClient(responses ...*CompletionResponse) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

func (s *ScriptedClient) Name() string { return "scripted" }

func (s *ScriptedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.Messages = append([]Message(nil), req.Messages...)
	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.requests) > len(s.responses) {
		return nil, fmt.Errorf("scripted client: no response for call %d", len(s.requests))
	}
	resp := *s.responses[len(s.requests)-1]
	return &resp, nil
}

// Requests returns a copy of the recorded requests.
func (s *ScriptedClient) Requests() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionRequest(nil), s.requests...)
}

// Calls returns how many times Complete was invoked.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// EchoClient answers every request with the last user message. It backs the
// "mock" provider for offline runs.
type EchoClient struct{}

func (EchoClient) Name() string { return "mock" }

func (EchoClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role == RoleUser || m.Role == RoleTool {
			return &CompletionResponse{Content: m.Content, Model: "mock", StopReason: "stop"}, nil
		}
	}
	return &CompletionResponse{Content: "", Model: "mock", StopReason: "stop"}, nil
}
