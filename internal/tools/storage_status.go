package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/storage"
	"github.com/soyeahso/agentloop/internal/ui"
)

// StorageStatus reports on the local model cache.
func StorageStatus(deps Deps) (agent.Tool, error) {
	if deps.Storage == nil {
		return agent.Tool{}, errors.New("storage inspector not configured")
	}
	in := deps.Storage
	return agent.Tool{
		Name:        "storage_status",
		Description: "Report how much disk the local model cache uses and whether models are cached.",
		Parameters:  schema.Object(),
		Execute: func(ctx context.Context, _ map[string]any) (agent.ToolResult, error) {
			info := in.Inspect(ctx)
			cached := "no"
			if info.IsModelCached {
				cached = "yes"
			}
			prompt := fmt.Sprintf("Model cached: %s. Storage used: %s of %s. Model files: %d.",
				cached,
				storage.FormatBytes(info.StorageUsage),
				storage.FormatBytes(info.StorageQuota),
				len(info.ModelFiles))

			return agent.ToolResult{
				NextPrompt: prompt,
				Render: func() ui.Element {
					return ui.Card{
						Title: "Model storage",
						Fields: []ui.Field{
							{Label: "Model cached", Value: cached},
							{Label: "Storage used", Value: storage.FormatBytes(info.StorageUsage)},
							{Label: "Storage quota", Value: storage.FormatBytes(info.StorageQuota)},
							{Label: "Model files", Value: fmt.Sprint(len(info.ModelFiles))},
						},
					}
				},
			}, nil
		},
	}, nil
}
