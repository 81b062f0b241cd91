// Package hooks lets callers observe agent loop and gateway lifecycle events.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/soyeahso/agentloop/internal/logging"
)

// Event names.
const (
	EventPromptStart  = "prompt_start"
	EventPromptDone   = "prompt_done"
	EventPromptError  = "prompt_error"
	EventModelCall    = "model_call"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
	EventRender       = "render"
	EventGatewayStart = "gateway_start"
	EventGatewayStop  = "gateway_stop"
)

// AnyEvent subscribes a handler to every event.
const AnyEvent = "*"

// AllEvents lists the events the loop and gateway emit.
var AllEvents = []string{
	EventPromptStart,
	EventPromptDone,
	EventPromptError,
	EventModelCall,
	EventToolCall,
	EventToolResult,
	EventRender,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload is what a handler receives.
type Payload struct {
	Event string         `json:"event"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler observes one event. Returned errors and panics are logged and
// never reach the emitter.
type Handler func(ctx context.Context, p Payload) error

type subscription struct {
	name    string
	handler Handler
}

// Manager dispatches events to subscribed handlers. A nil *Manager is valid
// and drops every event, so emitters need no nil checks.
type Manager struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	log  *logging.Logger
	now  func() time.Time
}

// NewManager creates an empty manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		subs: make(map[string][]subscription),
		log:  log.Sub("hooks"),
		now:  time.Now,
	}
}

// On subscribes handler to event under name. Use AnyEvent for every event.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[event] = append(m.subs[event], subscription{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes the handlers named name from event and reports whether any
// were removed.
func (m *Manager) Off(event, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.subs[event])
	m.subs[event] = slices.DeleteFunc(m.subs[event], func(s subscription) bool { return s.name == name })
	return len(m.subs[event]) < before
}

// Emit calls the handlers for event, then the AnyEvent handlers, in
// registration order and on the caller's goroutine.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	m.mu.RLock()
	subs := slices.Concat(m.subs[event], m.subs[AnyEvent])
	m.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	p := Payload{Event: event, Time: m.now(), Data: data}
	for _, s := range subs {
		if err := m.call(ctx, s, p); err != nil {
			m.log.Warn().Err(err).Str("event", event).Str("handler", s.name).Msg("hook handler failed")
		}
	}
}

func (m *Manager) call(ctx context.Context, s subscription, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, p)
}

// Count returns the number of handlers subscribed to event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[event])
}

// Events returns the events with at least one handler, sorted.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []string
	for event, subs := range m.subs {
		if len(subs) > 0 {
			events = append(events, event)
		}
	}
	slices.Sort(events)
	return events
}

// LogHandler returns a handler writing each event to log at level.
func LogHandler(log *logging.Logger, level zerolog.Level) Handler {
	zl := log.Zerolog()
	return func(_ context.Context, p Payload) error {
		ev := zl.WithLevel(level).Str("hook", p.Event)
		for k, v := range p.Data {
			ev = ev.Interface(k, v)
		}
		ev.Msg("lifecycle event")
		return nil
	}
}
