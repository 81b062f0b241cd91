package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentloop/internal/hooks"
	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

func newTestLoop(client llm.Client, tools ...Tool) *Loop {
	reg := NewToolRegistry()
	for _, t := range tools {
		reg.Register(t)
	}
	return NewLoop(client, reg, LoopConfig{Model: "test-model"}, nil, testLogger())
}

func TestProcessPromptNoTools(t *testing.T) {
	sc := llm.NewScriptedClient(textResp("Hello there!"))
	loop := newTestLoop(sc)

	res, err := loop.ProcessPrompt(context.Background(), Request{
		System:    "You are helpful.",
		User:      "Hi",
		MaxRounds: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", res.Text)
	assert.True(t, res.Final)
	assert.Equal(t, 0, res.RoundsUsed)
	assert.Equal(t, 1, res.ModelCalls)
	assert.Equal(t, 1, sc.Calls())

	req := sc.Requests()[0]
	assert.Equal(t, "You are helpful.", req.System)
	assert.Equal(t, "test-model", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, "Hi", req.Messages[0].Content)
}

func TestProcessPromptCalculatorAnswersDirectly(t *testing.T) {
	sc := llm.NewScriptedClient(textResp("4"))
	loop := newTestLoop(sc)

	res, err := loop.ProcessPrompt(context.Background(), Request{
		System:    "You are a calculator assistant",
		User:      "What is 2+2?",
		MaxRounds: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "4", res.Text)
	assert.True(t, res.Final)
	assert.Equal(t, 0, res.ToolCalls)
	assert.Equal(t, 0, res.RoundsUsed)
	assert.Equal(t, 1, sc.Calls())
	assert.Empty(t, sc.Requests()[0].Tools)
	assert.Equal(t, "You are a calculator assistant", sc.Requests()[0].System)
}

func TestProcessPromptLookupThenAnswer(t *testing.T) {
	var inputs []map[string]any
	lookup := Tool{
		Name:        "lookup",
		Description: "Look up a fact",
		Parameters:  schema.Object(schema.Required("query", schema.String("What to look up"))),
		Execute: func(_ context.Context, input map[string]any) (ToolResult, error) {
			inputs = append(inputs, input)
			return ToolResult{NextPrompt: "Paris"}, nil
		},
	}
	sc := llm.NewScriptedClient(
		toolCallResp(llm.ToolCall{ID: "q1", Name: "lookup", Input: map[string]any{"query": "capital of France"}}),
		textResp("The capital of France is Paris."),
	)
	loop := newTestLoop(sc, lookup)

	res, err := loop.ProcessPrompt(context.Background(), Request{User: "What is the capital of France?", MaxRounds: 5})
	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", res.Text)
	assert.Equal(t, 1, res.RoundsUsed)
	require.Len(t, inputs, 1)
	assert.Equal(t, map[string]any{"query": "capital of France"}, inputs[0])

	fed := sc.Requests()[1].Messages[2]
	assert.Equal(t, llm.RoleTool, fed.Role)
	assert.Equal(t, "Paris", fed.Content)
	assert.Equal(t, "q1", fed.ToolCallID)
}

func TestProcessPromptToolRound(t *testing.T) {
	sc := llm.NewScriptedClient(
		toolCallResp(llm.ToolCall{ID: "c1", Name: "weather", Input: map[string]any{"city": "Paris"}}),
		textResp("It's 72°F and sunny in Paris."),
	)
	loop := newTestLoop(sc, weatherTool())
	r := &recordingRenderer{}

	res, err := loop.ProcessPrompt(context.Background(), Request{
		User:      "What's the weather in Paris?",
		MaxRounds: 5,
		Renderer:  r,
	})
	require.NoError(t, err)
	assert.Equal(t, "It's 72°F and sunny in Paris.", res.Text)
	assert.True(t, res.Final)
	assert.Equal(t, 1, res.RoundsUsed)
	assert.Equal(t, 2, res.ModelCalls)
	assert.Equal(t, 1, res.ToolCalls)

	require.Len(t, r.elements, 1)
	card, ok := r.elements[0].(ui.Card)
	require.True(t, ok)
	assert.Equal(t, "Weather in Paris", card.Title)

	second := sc.Requests()[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	require.Len(t, second.Messages[1].ToolCalls, 1)
	assert.Equal(t, "c1", second.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleTool, second.Messages[2].Role)
	assert.Equal(t, "c1", second.Messages[2].ToolCallID)
	assert.Equal(t, "weather", second.Messages[2].Name)
	assert.Equal(t, "The weather in Paris is 72°F and sunny.", second.Messages[2].Content)

	require.Len(t, second.Tools, 1)
	assert.Equal(t, "weather", second.Tools[0].Name)
}

func TestProcessPromptRoundLimit(t *testing.T) {
	call := llm.ToolCall{ID: "c", Name: "upper", Input: map[string]any{"text": "again"}}
	resp := toolCallResp(call)
	resp.Content = "still working"
	sc := llm.NewScriptedClient(resp, resp, resp, resp)
	loop := newTestLoop(sc, upperTool())

	res, err := loop.ProcessPrompt(context.Background(), Request{User: "loop forever", MaxRounds: 2})
	require.NoError(t, err)
	assert.False(t, res.Final)
	assert.Equal(t, 2, res.RoundsUsed)
	assert.Equal(t, "still working", res.Text)
	assert.Equal(t, 2, sc.Calls())
}

func TestProcessPromptServiceCallsBounded(t *testing.T) {
	for n := 1; n <= 4; n++ {
		call := llm.ToolCall{Name: "upper", Input: map[string]any{"text": "x"}}
		script := make([]*llm.CompletionResponse, 10)
		for i := range script {
			script[i] = toolCallResp(call)
		}
		sc := llm.NewScriptedClient(script...)
		loop := newTestLoop(sc, upperTool())

		res, err := loop.ProcessPrompt(context.Background(), Request{User: "go", MaxRounds: n})
		require.NoError(t, err)
		assert.LessOrEqual(t, sc.Calls(), n, "maxRounds=%d", n)
		assert.Equal(t, n, res.RoundsUsed)
	}
}

func TestProcessPromptInvalidMaxRounds(t *testing.T) {
	sc := llm.NewScriptedClient(textResp("unused"))
	loop := newTestLoop(sc)

	for _, n := range []int{0, -1} {
		_, err := loop.ProcessPrompt(context.Background(), Request{User: "hi", MaxRounds: n})
		assert.ErrorIs(t, err, ErrInvalidMaxRounds)
	}
	assert.Equal(t, 0, sc.Calls())
}

func TestProcessPromptToolNotFound(t *testing.T) {
	sc := llm.NewScriptedClient(
		toolCallResp(llm.ToolCall{ID: "c1", Name: "missing", Input: map[string]any{}}),
		textResp("unreachable"),
	)
	loop := newTestLoop(sc, upperTool())

	res, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 3})
	assert.Nil(t, res)
	var nf *ToolNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
	assert.Equal(t, 1, nf.Round)
	assert.Equal(t, 1, sc.Calls())
}

func TestProcessPromptValidationError(t *testing.T) {
	executed := false
	tool := upperTool()
	inner := tool.Execute
	tool.Execute = func(ctx context.Context, input map[string]any) (ToolResult, error) {
		executed = true
		return inner(ctx, input)
	}
	sc := llm.NewScriptedClient(
		toolCallResp(llm.ToolCall{Name: "upper", Input: map[string]any{"text": 42}}),
	)
	loop := newTestLoop(sc, tool)

	_, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 3})
	var verr *ToolInputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "upper", verr.Name)
	var sverr *schema.ValidationError
	assert.ErrorAs(t, err, &sverr)
	assert.False(t, executed)
}

func TestProcessPromptExecutionError(t *testing.T) {
	boom := errors.New("boom")
	tool := Tool{
		Name:       "explode",
		Parameters: schema.Object(),
		Execute: func(context.Context, map[string]any) (ToolResult, error) {
			return ToolResult{}, boom
		},
	}
	sc := llm.NewScriptedClient(toolCallResp(llm.ToolCall{Name: "explode"}))
	loop := newTestLoop(sc, tool)

	_, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 3})
	var eerr *ToolExecutionError
	require.ErrorAs(t, err, &eerr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, eerr.Round)
}

func TestProcessPromptCompletionError(t *testing.T) {
	client := &llm.MockClient{
		ProviderName: "broken",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "broken", Code: 500, Message: "down"}
		},
	}
	loop := newTestLoop(client)

	_, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 1})
	var cerr *CompletionServiceError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 1, cerr.Round)
	var perr *llm.ProviderError
	assert.ErrorAs(t, err, &perr)
}

func TestProcessPromptRendererErrorIgnored(t *testing.T) {
	sc := llm.NewScriptedClient(
		toolCallResp(llm.ToolCall{Name: "weather", Input: map[string]any{"city": "Oslo"}}),
		textResp("cold"),
	)
	loop := newTestLoop(sc, weatherTool())
	r := &recordingRenderer{err: errors.New("display closed")}

	res, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 2, Renderer: r})
	require.NoError(t, err)
	assert.Equal(t, "cold", res.Text)
	assert.Len(t, r.elements, 1)
}

func TestProcessPromptRendererPanicIgnored(t *testing.T) {
	sc := llm.NewScriptedClient(
		toolCallResp(llm.ToolCall{Name: "weather", Input: map[string]any{"city": "Oslo"}}),
		textResp("cold"),
	)
	loop := newTestLoop(sc, weatherTool())
	r := RenderFunc(func(ui.Element) error { panic("display gone") })

	var res *Result
	var err error
	require.NotPanics(t, func() {
		res, err = loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 2, Renderer: r})
	})
	require.NoError(t, err)
	assert.Equal(t, "cold", res.Text)
	assert.Equal(t, 1, res.ToolCalls)
}

func TestProcessPromptRenderBuilderPanicIgnored(t *testing.T) {
	tool := Tool{
		Name:       "chart",
		Parameters: schema.Object(),
		Execute: func(context.Context, map[string]any) (ToolResult, error) {
			return ToolResult{
				NextPrompt: "drawn",
				Render:     func() ui.Element { panic("no data") },
			}, nil
		},
	}
	sc := llm.NewScriptedClient(toolCallResp(llm.ToolCall{Name: "chart"}), textResp("done"))
	loop := newTestLoop(sc, tool)
	r := &recordingRenderer{}

	res, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 2, Renderer: r})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	assert.Empty(t, r.elements)
	assert.Equal(t, "drawn", sc.Requests()[1].Messages[2].Content)
}

func TestProcessPromptNoRenderer(t *testing.T) {
	sc := llm.NewScriptedClient(
		toolCallResp(llm.ToolCall{Name: "weather", Input: map[string]any{"city": "Rome"}}),
		textResp("warm"),
	)
	loop := newTestLoop(sc, weatherTool())

	res, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 2})
	require.NoError(t, err)
	assert.Equal(t, "warm", res.Text)
}

func TestProcessPromptSequentialOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	mk := func(name string, delay time.Duration) Tool {
		return Tool{
			Name:       name,
			Parameters: schema.Object(),
			Execute: func(context.Context, map[string]any) (ToolResult, error) {
				time.Sleep(delay)
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return ToolResult{NextPrompt: name + " done"}, nil
			},
		}
	}
	sc := llm.NewScriptedClient(
		toolCallResp(
			llm.ToolCall{ID: "a", Name: "slow"},
			llm.ToolCall{ID: "b", Name: "fast"},
		),
		textResp("ok"),
	)
	loop := newTestLoop(sc, mk("slow", 30*time.Millisecond), mk("fast", 0))

	_, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"slow", "fast"}, order)

	msgs := sc.Requests()[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "a", msgs[2].ToolCallID)
	assert.Equal(t, "slow done", msgs[2].Content)
	assert.Equal(t, "b", msgs[3].ToolCallID)
}

func TestProcessPromptSnapshotIsolation(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(upperTool())

	var loop *Loop
	client := &llm.MockClient{}
	calls := 0
	client.CompleteFunc = func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls++
		if calls == 1 {
			// Registering mid-session must not reach this session.
			loop.Tools().Register(weatherTool())
			return toolCallResp(llm.ToolCall{Name: "weather", Input: map[string]any{"city": "Lima"}}), nil
		}
		return textResp("unreachable"), nil
	}
	loop = NewLoop(client, reg, LoopConfig{}, nil, testLogger())

	_, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 2})
	var nf *ToolNotFoundError
	require.ErrorAs(t, err, &nf)

	// The next session sees the new tool.
	calls = 0
	client.CompleteFunc = func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls++
		if calls == 1 {
			return toolCallResp(llm.ToolCall{Name: "weather", Input: map[string]any{"city": "Lima"}}), nil
		}
		return textResp("sunny"), nil
	}
	res, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 2})
	require.NoError(t, err)
	assert.Equal(t, "sunny", res.Text)
}

func TestProcessPromptUsageAndHooks(t *testing.T) {
	first := toolCallResp(llm.ToolCall{Name: "upper", Input: map[string]any{"text": "a"}})
	first.Usage = llm.Usage{InputTokens: 10, OutputTokens: 2}
	last := textResp("A")
	last.Usage = llm.Usage{InputTokens: 15, OutputTokens: 1}
	last.Model = "gemini-2.0-flash-exp"
	sc := llm.NewScriptedClient(first, last)

	h := hooks.NewManager(testLogger())
	var mu sync.Mutex
	seen := map[string]int{}
	for _, ev := range []string{hooks.EventPromptStart, hooks.EventModelCall, hooks.EventToolCall, hooks.EventToolResult, hooks.EventPromptDone} {
		ev := ev
		h.On(ev, "count", func(context.Context, hooks.Payload) error {
			mu.Lock()
			seen[ev]++
			mu.Unlock()
			return nil
		})
	}

	reg := NewToolRegistry()
	reg.Register(upperTool())
	loop := NewLoop(sc, reg, LoopConfig{}, h, testLogger())

	res, err := loop.ProcessPrompt(context.Background(), Request{User: "x", MaxRounds: 3})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Usage.InputTokens)
	assert.Equal(t, 3, res.Usage.OutputTokens)
	assert.Equal(t, "gemini-2.0-flash-exp", res.Model)
	assert.Len(t, res.Transcript, 3)

	assert.Equal(t, 1, seen[hooks.EventPromptStart])
	assert.Equal(t, 2, seen[hooks.EventModelCall])
	assert.Equal(t, 1, seen[hooks.EventToolCall])
	assert.Equal(t, 1, seen[hooks.EventToolResult])
	assert.Equal(t, 1, seen[hooks.EventPromptDone])
}

func TestProcessPromptCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := llm.NewScriptedClient(textResp("x"))
	loop := newTestLoop(sc)

	_, err := loop.ProcessPrompt(ctx, Request{User: "x", MaxRounds: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AWAITING_MODEL", StateAwaitingModel.String())
	assert.Equal(t, "EXECUTING_TOOLS", StateExecutingTools.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "State(9)", State(9).String())
}
