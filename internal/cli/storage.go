package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soyeahso/agentloop/internal/storage"
	"github.com/spf13/cobra"
)

func newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect or clear the local model cache",
	}
	cmd.AddCommand(newStorageInspectCmd())
	cmd.AddCommand(newStorageClearCmd())
	return cmd
}

func newStorageInspectCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show cache usage and cached model files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				in := a.Storage()
				info := in.Inspect(ctx)

				out := cmd.OutOrStdout()
				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(info)
				}

				fmt.Fprintf(out, "Cache dir:    %s\n", in.Dir())
				fmt.Fprintf(out, "Model cached: %v\n", info.IsModelCached)
				fmt.Fprintf(out, "Model files:  %s\n", storage.FormatBytes(info.TotalStorageUsed))
				fmt.Fprintf(out, "Usage:        %s of %s\n",
					storage.FormatBytes(info.StorageUsage), storage.FormatBytes(info.StorageQuota))
				if len(info.ModelFiles) > 0 {
					fmt.Fprintln(out)
					for _, f := range info.ModelFiles {
						fmt.Fprintf(out, "  %s\n", f)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw report as JSON")
	return cmd
}

func newStorageClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete cached model stores and files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.Storage().Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Model cache cleared.")
				return nil
			})
		},
	}
}
