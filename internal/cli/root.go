package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soyeahso/agentloop/internal/config"
	"github.com/spf13/cobra"
)

// Persistent flags and the paths they resolve to. Set by resolvePaths
// before any subcommand runs.
var (
	cfgFile  string
	logLevel string
	paths    config.Paths
)

const (
	groupAgent = "agent"
	groupData  = "data"
	groupAdmin = "admin"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "agentloop",
		Short:             "agentloop runs a tool-calling LLM agent",
		Long:              "agentloop drives a language model through rounds of tool calls until it produces an answer, from the terminal, a WebSocket gateway or IRC.",
		PersistentPreRunE: resolvePaths,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.agentloop/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error, silent)")

	cmd.AddGroup(
		&cobra.Group{ID: groupAgent, Title: "Agent:"},
		&cobra.Group{ID: groupData, Title: "Knowledge and storage:"},
		&cobra.Group{ID: groupAdmin, Title: "Setup:"},
	)
	addGrouped(cmd, groupAgent, newAskCmd(), newGenerateCmd(), newEmbedCmd(), newServeCmd(), newToolsCmd())
	addGrouped(cmd, groupData, newKnowledgeCmd(), newStorageCmd())
	addGrouped(cmd, groupAdmin, newConfigCmd(), newAuthCmd(), newStatusCmd(), newVersionCmd())
	return cmd
}

func addGrouped(parent *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.GroupID = group
		parent.AddCommand(c)
	}
}

func resolvePaths(cmd *cobra.Command, args []string) error {
	p, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	if cfgFile != "" {
		p.Config = cfgFile
	}
	paths = p
	return nil
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		cmd.PrintErrln("Error:", err)
	}
	return err
}
