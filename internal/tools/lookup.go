package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/store"
	"github.com/soyeahso/agentloop/internal/ui"
)

type lookupInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Lookup searches the knowledge base. With an embedder it ranks by vector
// similarity and falls back to full-text search otherwise.
func Lookup(deps Deps) (agent.Tool, error) {
	if deps.Knowledge == nil {
		return agent.Tool{}, errors.New("knowledge store not configured")
	}
	return agent.Tool{
		Name:        "lookup",
		Description: "Search the local knowledge base for documents relevant to a question.",
		Parameters: schema.Object(
			schema.Required("query", schema.String("What to look up")),
			schema.Optional("limit", schema.Integer("Maximum number of documents, default 3")),
		),
		Execute: func(ctx context.Context, input map[string]any) (agent.ToolResult, error) {
			var in lookupInput
			if err := schema.Decode(input, &in); err != nil {
				return agent.ToolResult{}, err
			}
			if in.Limit <= 0 || in.Limit > 20 {
				in.Limit = 3
			}

			docs, err := lookupDocs(ctx, deps, in)
			if err != nil {
				return softFail("knowledge lookup failed: %v", err), nil
			}
			if len(docs) == 0 {
				return agent.ToolResult{NextPrompt: fmt.Sprintf("No documents found for %q.", in.Query)}, nil
			}

			var b strings.Builder
			items := make([]string, len(docs))
			for i, d := range docs {
				title := d.Title
				if title == "" {
					title = d.ID
				}
				fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, title, truncate(d.Content, 2000))
				items[i] = title
			}
			return agent.ToolResult{
				NextPrompt: strings.TrimSpace(b.String()),
				Render: func() ui.Element {
					return ui.List{Title: "Sources for " + in.Query, Items: items}
				},
			}, nil
		},
	}, nil
}

func lookupDocs(ctx context.Context, deps Deps, in lookupInput) ([]store.Document, error) {
	if deps.Embedder != nil {
		vec, err := deps.Embedder.Embed(ctx, in.Query)
		if err == nil {
			docs, err := deps.Knowledge.Nearest(ctx, vec, in.Limit)
			if err == nil && len(docs) > 0 {
				return docs, nil
			}
		} else {
			deps.Log.Warn().Err(err).Msg("embedding query failed, using full-text search")
		}
	}
	return deps.Knowledge.Search(ctx, in.Query, in.Limit)
}
