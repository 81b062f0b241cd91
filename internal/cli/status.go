package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/storage"
	"github.com/soyeahso/agentloop/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show agentloop status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				cfg := a.cfg
				b := version.Get()
				fmt.Fprintf(out, "agentloop %s (commit %s, %s)\n\n", b.Version, b.Commit, b.GoVersion)

				fmt.Fprintf(out, "Config:    %s\n", a.paths.Config)
				fmt.Fprintf(out, "Data:      %s\n", a.paths.Data)
				fmt.Fprintln(out)

				model := cfg.Model.Model
				if model == "" {
					model = "(provider default)"
				}
				fmt.Fprintf(out, "Model:     provider=%s model=%s retries=%d\n", cfg.Model.Provider, model, cfg.Model.Retries)
				for _, fb := range cfg.Model.Fallbacks {
					fmt.Fprintf(out, "Fallback:  provider=%s model=%s\n", fb.Provider, fb.Model)
				}
				fmt.Fprintf(out, "Agent:     name=%s maxRounds=%d\n", cfg.Agent.Name, cfg.Agent.MaxRounds)

				embed := cfg.Embedding.Provider
				if embed == "" {
					embed = "gemini"
				}
				fmt.Fprintf(out, "Embedding: provider=%s\n", embed)

				enabled := "all available"
				if len(cfg.Tools.Enabled) > 0 {
					enabled = strings.Join(cfg.Tools.Enabled, ", ")
				}
				fmt.Fprintf(out, "Tools:     %s\n", enabled)

				fmt.Fprintf(out, "Gateway:   port=%d bind=%s auth=%s tls=%v\n",
					cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)

				if cfg.IRC != nil {
					fmt.Fprintf(out, "IRC:       server=%s nick=%s channels=%s tls=%v\n",
						cfg.IRC.Server, cfg.IRC.Nick, strings.Join(cfg.IRC.Channels, ","), cfg.IRC.UseTLS)
				} else {
					fmt.Fprintln(out, "IRC:       (not configured)")
				}

				if ks, err := a.Knowledge(); err != nil {
					fmt.Fprintf(out, "Knowledge: error: %v\n", err)
				} else if n, err := ks.Count(ctx); err != nil {
					fmt.Fprintf(out, "Knowledge: error: %v\n", err)
				} else {
					fmt.Fprintf(out, "Knowledge: %d documents (%s)\n", n, cfg.Knowledge.DBPath)
				}

				info := a.Storage().Inspect(ctx)
				fmt.Fprintf(out, "Storage:   %s used by models, cached=%v\n",
					storage.FormatBytes(info.TotalStorageUsed), info.IsModelCached)

				if issues := config.Validate(&cfg); len(issues) > 0 {
					fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
					for _, issue := range issues {
						fmt.Fprintf(out, "  - %s\n", issue)
					}
				}
				return nil
			})
		},
	}

	return cmd
}
