package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/soyeahso/agentloop/internal/store"
	"github.com/spf13/cobra"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the documents the lookup tool searches",
	}
	cmd.AddCommand(newKnowledgeAddCmd())
	cmd.AddCommand(newKnowledgeSearchCmd())
	cmd.AddCommand(newKnowledgeListCmd())
	cmd.AddCommand(newKnowledgeDeleteCmd())
	cmd.AddCommand(newKnowledgeCountCmd())
	return cmd
}

func newKnowledgeAddCmd() *cobra.Command {
	var (
		id, title, source, file string
		noEmbed                 bool
	)

	cmd := &cobra.Command{
		Use:   "add [content...]",
		Short: "Add a document from arguments, --file, or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := documentContent(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			if source == "" {
				source = file
			}

			return runApp(cmd, func(ctx context.Context, a *app) error {
				ks, err := a.Knowledge()
				if err != nil {
					return err
				}

				doc := store.Document{ID: id, Title: title, Content: content, Source: source}
				if !noEmbed {
					if e, err := a.Embedder(ctx); err != nil {
						a.log.Warn().Err(err).Msg("storing without embedding")
					} else if vec, err := e.Embed(ctx, content); err != nil {
						a.log.Warn().Err(err).Msg("embedding failed, storing without it")
					} else {
						doc.Embedding = vec
					}
				}

				saved, err := ks.Add(ctx, doc)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "document ID (default random; an existing ID is replaced)")
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&source, "source", "", "where the document came from (default --file)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from a file")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "skip computing an embedding")
	return cmd
}

// documentContent picks the document body from args, a file, or stdin, in
// that order.
func documentContent(stdin io.Reader, file string, args []string) (string, error) {
	var content string
	switch {
	case len(args) > 0:
		content = strings.Join(args, " ")
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		content = string(b)
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		content = string(b)
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.New("document content is empty")
	}
	return content, nil
}

func newKnowledgeSearchCmd() *cobra.Command {
	var (
		limit    int
		semantic bool
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search documents by full text, or by embedding with --semantic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runApp(cmd, func(ctx context.Context, a *app) error {
				ks, err := a.Knowledge()
				if err != nil {
					return err
				}

				var docs []store.Document
				if semantic {
					e, err := a.Embedder(ctx)
					if err != nil {
						return err
					}
					vec, err := e.Embed(ctx, query)
					if err != nil {
						return err
					}
					docs, err = ks.Nearest(ctx, vec, limit)
					if err != nil {
						return err
					}
				} else {
					docs, err = ks.Search(ctx, query, limit)
					if err != nil {
						return err
					}
				}

				if len(docs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No documents found.")
					return nil
				}
				printDocuments(cmd.OutOrStdout(), docs, true)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum results")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "rank by embedding similarity")
	return cmd
}

func newKnowledgeListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				ks, err := a.Knowledge()
				if err != nil {
					return err
				}
				docs, err := ks.List(ctx, limit)
				if err != nil {
					return err
				}
				printDocuments(cmd.OutOrStdout(), docs, false)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum documents")
	return cmd
}

func newKnowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				ks, err := a.Knowledge()
				if err != nil {
					return err
				}
				if err := ks.Delete(ctx, args[0]); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("document %q not found", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newKnowledgeCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				ks, err := a.Knowledge()
				if err != nil {
					return err
				}
				n, err := ks.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func printDocuments(w io.Writer, docs []store.Document, withScore bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if withScore {
		fmt.Fprintln(tw, "ID\tTITLE\tSCORE\tSNIPPET")
	} else {
		fmt.Fprintln(tw, "ID\tTITLE\tUPDATED\tSNIPPET")
	}
	for _, d := range docs {
		third := d.UpdatedAt.Format("2006-01-02 15:04")
		if withScore {
			third = fmt.Sprintf("%.3f", d.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, orDash(d.Title), third, snippet(d.Content, 60))
	}
	tw.Flush()
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
