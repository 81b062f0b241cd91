package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/ui"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Single-shot generation without tools",
	}
	cmd.AddCommand(newGenerateTextCmd())
	cmd.AddCommand(newGenerateObjectCmd())
	return cmd
}

func newGenerateTextCmd() *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "text <prompt...>",
		Short: "Generate text from a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				gen, err := a.Generator(ctx)
				if err != nil {
					return err
				}
				text, err := gen.GenerateText(ctx, system, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&system, "system", config.DefaultSystemPrompt, "system prompt")
	return cmd
}

func newGenerateObjectCmd() *cobra.Command {
	var (
		system     string
		titles     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "object <prompt...>",
		Short: "Extract a list of dated events from a prompt",
		Long: "Asks the model for a JSON array of {title, description, date} objects, " +
			"validates it and prints it as a table.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				gen, err := a.Generator(ctx)
				if err != nil {
					return err
				}
				joined, events, err := gen.SummarizeTitles(ctx, system, strings.Join(args, " "))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case titles:
					fmt.Fprintln(out, joined)
					return nil
				case jsonOutput:
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(events)
				}
				r := &ui.TextRenderer{W: out}
				return r.Render(eventTable(events))
			})
		},
	}

	cmd.Flags().StringVar(&system, "system", "", "system prompt")
	cmd.Flags().BoolVar(&titles, "titles", false, "print only the titles, comma separated")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the events as JSON")
	return cmd
}

func eventTable(events []llm.Event) ui.Table {
	t := ui.Table{Title: "Events", Columns: []string{"Title", "Date", "Description"}}
	for _, e := range events {
		date := e.Date
		if date == "" {
			date = "-"
		}
		t.Rows = append(t.Rows, []string{e.Title, date, e.Description})
	}
	return t
}
