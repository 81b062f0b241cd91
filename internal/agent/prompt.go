package agent

import (
	"fmt"
	"strings"
	"time"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AgentName string
	Base      string // configured system prompt
	ToolNames []string
	ChannelID string
	UserName  string
	Now       time.Time
}

// BuildSystemPrompt constructs the system prompt sent with every round.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	if cfg.Base != "" {
		b.WriteString(strings.TrimSpace(cfg.Base))
		b.WriteString("\n\n")
	}
	if cfg.AgentName != "" {
		fmt.Fprintf(&b, "Your name is %s.\n", cfg.AgentName)
	}

	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))

	if cfg.ChannelID != "" {
		fmt.Fprintf(&b, "Channel: %s\n", cfg.ChannelID)
	}
	if cfg.UserName != "" {
		fmt.Fprintf(&b, "User: %s\n", cfg.UserName)
	}

	if len(cfg.ToolNames) > 0 {
		b.WriteString("\nGuidelines:\n")
		fmt.Fprintf(&b, "- Tools available: %s.\n", strings.Join(cfg.ToolNames, ", "))
		b.WriteString("- Call a tool only when it helps; answer directly otherwise.\n")
		b.WriteString("- If a tool reports a problem, tell the user instead of retrying blindly.\n")
	}

	return b.String()
}
