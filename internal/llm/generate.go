package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/agentloop/internal/schema"
)

// TextGenerator issues single-shot requests without tools.
type TextGenerator struct {
	Client    Client
	Model     string
	MaxTokens int
}

// GenerateText returns the model's answer to one system/user exchange.
func (g *TextGenerator) GenerateText(ctx context.Context, system, user string) (string, error) {
	resp, err := g.Client.Complete(ctx, CompletionRequest{
		Model:     g.Model,
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: user}},
		MaxTokens: g.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateObject asks for JSON matching s, validates the answer against it
// and decodes it into out.
func (g *TextGenerator) GenerateObject(ctx context.Context, system, user string, s *schema.Schema, out any) error {
	shape, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	prompt := user + "\n\nRespond only with JSON matching this schema:\n" + string(shape)

	resp, err := g.Client.Complete(ctx, CompletionRequest{
		Model:      g.Model,
		System:     system,
		Messages:   []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:  g.MaxTokens,
		JSONSchema: s.JSONSchema(),
	})
	if err != nil {
		return err
	}

	var value any
	if err := json.Unmarshal([]byte(StripCodeFence(resp.Content)), &value); err != nil {
		return fmt.Errorf("model returned invalid JSON: %w", err)
	}
	if err := s.Validate(value); err != nil {
		return err
	}
	return schema.Decode(value, out)
}

// Event is one dated item in a titles summary.
type Event struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
}

// EventListSchema describes a list of events with an optional YYYY-MM-DD date.
var EventListSchema = schema.Array("events", schema.Object(
	schema.Required("title", schema.String("short title")),
	schema.Required("description", schema.String("one sentence description")),
	schema.Optional("date", schema.String("date in YYYY-MM-DD format")),
))

// SummarizeTitles extracts a list of events from the prompt and returns their
// titles joined by ", ".
func (g *TextGenerator) SummarizeTitles(ctx context.Context, system, user string) (string, []Event, error) {
	var events []Event
	if err := g.GenerateObject(ctx, system, user, EventListSchema, &events); err != nil {
		return "", nil, err
	}
	titles := make([]string, len(events))
	for i, e := range events {
		titles[i] = e.Title
	}
	return strings.Join(titles, ", "), events, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence if present.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
