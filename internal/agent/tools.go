package agent

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

// Tool is a named capability the model can invoke during a conversation.
// A Tool is never mutated after registration.
type Tool struct {
	Name        string
	Description string
	Parameters  *schema.Schema

	// Execute runs the tool with input that already conforms to Parameters.
	// Expected failures belong in ToolResult.NextPrompt; a returned error
	// aborts the whole loop.
	Execute func(ctx context.Context, input map[string]any) (ToolResult, error)
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	// NextPrompt is fed back to the model as the tool's return value.
	NextPrompt string

	// Render optionally produces a presentable element for the rendering sink.
	Render func() ui.Element
}

// Definition returns the descriptor advertised to the completion service.
func (t Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters.JSONSchema(),
	}
}

// ToolRegistry is a concurrency-safe name → Tool mapping.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register inserts or overwrites the tool under its name. Last write wins.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Snapshot returns a copy of the current mapping. Later registrations do not
// affect a snapshot already taken.
func (r *ToolRegistry) Snapshot() ToolSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ToolSet(maps.Clone(r.tools))
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	return r.Snapshot().Names()
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToolSet is an immutable view of the registry taken for one session.
type ToolSet map[string]Tool

// Names returns the tool names in sorted order.
func (s ToolSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the descriptors of every tool, sorted by name.
func (s ToolSet) Definitions() []llm.ToolDefinition {
	names := s.Names()
	defs := make([]llm.ToolDefinition, len(names))
	for i, n := range names {
		defs[i] = s[n].Definition()
	}
	return defs
}
