package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/logging"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

func toolCallResp(calls ...llm.ToolCall) *llm.CompletionResponse {
	return &llm.CompletionResponse{ToolCalls: calls, StopReason: "tool_calls"}
}

func textResp(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: text, StopReason: "stop"}
}

// weatherTool reports a fixed temperature and renders a card.
func weatherTool() Tool {
	return Tool{
		Name:        "weather",
		Description: "Get the current weather for a city",
		Parameters:  schema.Object(schema.Required("city", schema.String("City name"))),
		Execute: func(_ context.Context, input map[string]any) (ToolResult, error) {
			city := input["city"].(string)
			return ToolResult{
				NextPrompt: fmt.Sprintf("The weather in %s is 72°F and sunny.", city),
				Render: func() ui.Element {
					return ui.Card{Title: "Weather in " + city, Body: "72°F, sunny"}
				},
			}, nil
		},
	}
}

// upperTool uppercases its input without rendering anything.
func upperTool() Tool {
	return Tool{
		Name:       "upper",
		Parameters: schema.Object(schema.Required("text", schema.String(""))),
		Execute: func(_ context.Context, input map[string]any) (ToolResult, error) {
			return ToolResult{NextPrompt: strings.ToUpper(input["text"].(string))}, nil
		},
	}
}

type recordingRenderer struct {
	elements []ui.Element
	err      error
}

func (r *recordingRenderer) Render(el ui.Element) error {
	r.elements = append(r.elements, el)
	return r.err
}
