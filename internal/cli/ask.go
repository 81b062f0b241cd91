package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/ui"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		maxRounds  int
		system     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Run a prompt through the agent loop",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				loop, err := a.Loop(ctx)
				if err != nil {
					return err
				}

				rounds := maxRounds
				if rounds == 0 {
					rounds = a.cfg.Agent.MaxRounds
				}
				if system == "" {
					system = a.systemPrompt(loop, "cli")
				}

				out := cmd.OutOrStdout()
				req := agent.Request{
					System:    system,
					User:      strings.Join(args, " "),
					MaxRounds: rounds,
				}
				if !jsonOutput {
					req.Renderer = &ui.TextRenderer{W: out}
				}

				res, err := loop.ProcessPrompt(ctx, req)
				if err != nil {
					return err
				}

				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				fmt.Fprintln(out, res.Text)
				if !res.Final {
					fmt.Fprintf(cmd.ErrOrStderr(), "(stopped after %d rounds without a final answer)\n", res.RoundsUsed)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "tool-call rounds before stopping (default agent.maxRounds)")
	cmd.Flags().StringVar(&system, "system", "", "system prompt override")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full result as JSON")
	return cmd
}
