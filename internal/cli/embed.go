package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newEmbedCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "embed <text...>",
		Short: "Print the embedding vector of a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				e, err := a.Embedder(ctx)
				if err != nil {
					return err
				}
				vec, err := e.Embed(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if full {
					return json.NewEncoder(out).Encode(vec)
				}
				fmt.Fprintf(out, "dimensions: %d\n", len(vec))
				n := min(len(vec), 8)
				fmt.Fprintf(out, "values: %v", vec[:n])
				if n < len(vec) {
					fmt.Fprint(out, " ...")
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "print the whole vector as JSON")
	return cmd
}
