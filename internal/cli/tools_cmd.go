package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/soyeahso/agentloop/internal/tools"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tools offered to the model",
	}
	cmd.AddCommand(newToolsListCmd())
	return cmd
}

func newToolsListCmd() *cobra.Command {
	var (
		all        bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools the current config enables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.Tools(ctx)
				if err != nil {
					return err
				}
				set := reg.Snapshot()
				out := cmd.OutOrStdout()

				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(set.Definitions())
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSTATUS\tDESCRIPTION")
				for _, def := range set.Definitions() {
					fmt.Fprintf(tw, "%s\tenabled\t%s\n", def.Name, def.Description)
				}
				if all {
					for _, name := range tools.Names() {
						if _, ok := set[name]; !ok {
							fmt.Fprintf(tw, "%s\tunavailable\t%s\n", name, unavailableReason(name, a.cfg.Tools.Enabled))
						}
					}
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also show built-in tools that are not available")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the tool definitions sent to the model")
	return cmd
}

func unavailableReason(name string, enabled []string) string {
	if len(enabled) > 0 && !slices.Contains(enabled, name) {
		return "not in tools.enabled"
	}
	return "missing credentials or service"
}
