package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/agentloop/internal/hooks"
	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/logging"
	"github.com/soyeahso/agentloop/internal/ui"
)

// DefaultMaxRounds is the round limit used when a caller has no preference.
const DefaultMaxRounds = 5

// State is the loop's position within a session.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateExecutingTools:
		return "EXECUTING_TOOLS"
	case StateDone:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Renderer receives elements produced by tool results. It is called
// synchronously and in order; a returned error is logged and otherwise
// ignored.
type Renderer interface {
	Render(el ui.Element) error
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(el ui.Element) error

func (f RenderFunc) Render(el ui.Element) error { return f(el) }

// LoopConfig holds per-loop model settings.
type LoopConfig struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Request is one processPrompt invocation.
type Request struct {
	System    string
	User      string
	MaxRounds int
	Renderer  Renderer // optional
}

// Result is the outcome of a completed session.
type Result struct {
	Text       string        `json:"text"`
	RoundsUsed int           `json:"roundsUsed"`
	ModelCalls int           `json:"modelCalls"`
	ToolCalls  int           `json:"toolCalls"`
	Final      bool          `json:"final"` // false when cut off by the round limit
	Usage      llm.Usage     `json:"usage"`
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration"`
	Transcript []llm.Message `json:"transcript,omitempty"`
}

// Loop drives the generate / execute / feed-back cycle against a completion
// client and a tool registry.
type Loop struct {
	client llm.Client
	tools  *ToolRegistry
	cfg    LoopConfig
	hooks  *hooks.Manager
	log    *logging.Logger
}

// NewLoop creates an agent loop. hooks may be nil.
func NewLoop(client llm.Client, tools *ToolRegistry, cfg LoopConfig, h *hooks.Manager, log *logging.Logger) *Loop {
	return &Loop{
		client: client,
		tools:  tools,
		cfg:    cfg,
		hooks:  h,
		log:    log.Sub("agent"),
	}
}

// Tools returns the registry the loop snapshots at the start of each session.
func (l *Loop) Tools() *ToolRegistry { return l.tools }

// session is the ephemeral state of one ProcessPrompt call.
type session struct {
	id         string
	state      State
	tools      ToolSet
	conv       []llm.Message
	roundsUsed int
	maxRounds  int
	lastText   string
	result     Result
	log        *logging.Logger
}

func (s *session) transition(to State) {
	s.log.Debug().
		Str("from", s.state.String()).
		Str("to", to.String()).
		Int("roundsUsed", s.roundsUsed).
		Msg("state change")
	s.state = to
}

// ProcessPrompt runs one session to completion. It returns the model's final
// answer, or the last text produced when MaxRounds rounds of tool calls are
// used up. Any error aborts the session and no text is returned.
func (l *Loop) ProcessPrompt(ctx context.Context, req Request) (*Result, error) {
	if req.MaxRounds < 1 {
		return nil, ErrInvalidMaxRounds
	}

	start := time.Now()
	s := &session{
		id:        newSessionID(),
		state:     StateAwaitingModel,
		tools:     l.tools.Snapshot(),
		conv:      []llm.Message{{Role: llm.RoleUser, Content: req.User}},
		maxRounds: req.MaxRounds,
	}
	s.log = l.log.With("session", s.id)

	s.log.Info().
		Int("maxRounds", req.MaxRounds).
		Int("tools", len(s.tools)).
		Msg("processing prompt")
	l.hooks.Emit(ctx, hooks.EventPromptStart, map[string]any{
		"session":   s.id,
		"maxRounds": req.MaxRounds,
		"tools":     s.tools.Names(),
	})

	if err := l.run(ctx, s, req); err != nil {
		s.log.Warn().Err(err).Int("roundsUsed", s.roundsUsed).Msg("prompt failed")
		l.hooks.Emit(ctx, hooks.EventPromptError, map[string]any{
			"session": s.id,
			"error":   err.Error(),
		})
		return nil, err
	}

	res := s.result
	res.Text = s.lastText
	res.RoundsUsed = s.roundsUsed
	res.Duration = time.Since(start)
	res.Transcript = append([]llm.Message(nil), s.conv...)

	s.log.Info().
		Int("roundsUsed", res.RoundsUsed).
		Int("modelCalls", res.ModelCalls).
		Int("toolCalls", res.ToolCalls).
		Bool("final", res.Final).
		Int("inputTokens", res.Usage.InputTokens).
		Int("outputTokens", res.Usage.OutputTokens).
		Dur("duration", res.Duration).
		Msg("prompt done")
	l.hooks.Emit(ctx, hooks.EventPromptDone, map[string]any{
		"session":    s.id,
		"roundsUsed": res.RoundsUsed,
		"final":      res.Final,
	})
	return &res, nil
}

func (l *Loop) run(ctx context.Context, s *session, req Request) error {
	defs := s.tools.Definitions()

	for s.state != StateDone {
		round := s.roundsUsed + 1

		l.hooks.Emit(ctx, hooks.EventModelCall, map[string]any{"session": s.id, "round": round})
		resp, err := l.client.Complete(ctx, llm.CompletionRequest{
			Model:       l.cfg.Model,
			System:      req.System,
			Messages:    append([]llm.Message(nil), s.conv...),
			Tools:       defs,
			MaxTokens:   l.cfg.MaxTokens,
			Temperature: l.cfg.Temperature,
		})
		if err != nil {
			return &CompletionServiceError{Round: round, Err: err}
		}
		s.result.ModelCalls++
		s.result.Usage.Add(resp.Usage)
		if resp.Model != "" {
			s.result.Model = resp.Model
		}
		s.lastText = resp.Content

		if resp.Final() {
			s.result.Final = true
			s.transition(StateDone)
			break
		}

		s.transition(StateExecutingTools)
		calls := make([]llm.ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			if tc.ID == "" {
				tc.ID = fmt.Sprintf("call_%d_%d", round, i)
			}
			calls[i] = tc
		}
		s.conv = append(s.conv, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: calls})

		for _, tc := range calls {
			out, err := l.executeCall(ctx, s, round, tc, req.Renderer)
			if err != nil {
				return err
			}
			s.conv = append(s.conv, llm.Message{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}

		s.roundsUsed++
		if s.roundsUsed == s.maxRounds {
			s.log.Info().Int("maxRounds", s.maxRounds).Msg("round limit reached without a final answer")
			s.transition(StateDone)
			break
		}
		s.transition(StateAwaitingModel)
	}
	return nil
}

// executeCall looks up, validates and runs one tool call, forwarding any
// rendered element. It returns the tool's NextPrompt.
func (l *Loop) executeCall(ctx context.Context, s *session, round int, tc llm.ToolCall, r Renderer) (string, error) {
	tool, ok := s.tools[tc.Name]
	if !ok {
		return "", &ToolNotFoundError{Name: tc.Name, Round: round}
	}

	input := tc.Input
	if input == nil {
		input = map[string]any{}
	}
	if err := tool.Parameters.Validate(input); err != nil {
		return "", &ToolInputValidationError{Name: tc.Name, Round: round, Err: err}
	}

	s.log.Debug().Str("tool", tc.Name).Str("callId", tc.ID).Int("round", round).Msg("executing tool")
	l.hooks.Emit(ctx, hooks.EventToolCall, map[string]any{
		"session": s.id,
		"round":   round,
		"tool":    tc.Name,
		"input":   input,
	})

	start := time.Now()
	res, err := tool.Execute(ctx, input)
	if err != nil {
		return "", &ToolExecutionError{Name: tc.Name, Round: round, Err: err}
	}
	s.result.ToolCalls++

	l.hooks.Emit(ctx, hooks.EventToolResult, map[string]any{
		"session":  s.id,
		"round":    round,
		"tool":     tc.Name,
		"duration": time.Since(start).String(),
	})

	if res.Render != nil && r != nil {
		l.render(ctx, s, tc.Name, res.Render, r)
	}
	return res.NextPrompt, nil
}

// render builds and forwards one element. Failures, panics included, are
// logged and never reach the loop.
func (l *Loop) render(ctx context.Context, s *session, tool string, build func() ui.Element, r Renderer) {
	defer func() {
		if rv := recover(); rv != nil {
			s.log.Warn().Str("tool", tool).Str("panic", fmt.Sprint(rv)).Msg("renderer panicked")
		}
	}()

	el := build()
	if el == nil {
		return
	}
	if err := r.Render(el); err != nil {
		s.log.Warn().Err(err).Str("tool", tool).Msg("renderer failed")
		return
	}
	l.hooks.Emit(ctx, hooks.EventRender, map[string]any{
		"session": s.id,
		"tool":    tool,
		"kind":    el.Kind(),
	})
}

func newSessionID() string {
	return uuid.NewString()[:8]
}
