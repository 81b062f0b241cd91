// Package tools provides the built-in tools the agent can call.
package tools

import (
	"fmt"
	"net/http"
	"time"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/embedding"
	"github.com/soyeahso/agentloop/internal/logging"
	"github.com/soyeahso/agentloop/internal/storage"
	"github.com/soyeahso/agentloop/internal/store"
)

// Deps carries the services tools are built on. A nil service disables the
// tools that need it.
type Deps struct {
	HTTPClient *http.Client
	Knowledge  *store.KnowledgeStore
	Embedder   embedding.Embedder
	Storage    *storage.Inspector
	Mail       MailSource
	Mailbox    string
	Droplets   DropletLister
	Drive      DriveSearcher

	WeatherUserAgent string
	WeatherBaseURL   string // default NOAA API

	// AllowPrivateHosts lets fetch_url reach loopback and private networks.
	AllowPrivateHosts bool

	Log *logging.Logger
}

func (d Deps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// builders maps each tool name to its constructor. A constructor returns an
// error when a required dependency is missing.
var builders = map[string]func(Deps) (agent.Tool, error){
	"lookup":         Lookup,
	"weather":        Weather,
	"fetch_url":      FetchURL,
	"mail_inbox":     MailInbox,
	"droplets":       Droplets,
	"drive_search":   DriveSearch,
	"storage_status": StorageStatus,
}

// Names returns every built-in tool name.
func Names() []string {
	return []string{"lookup", "weather", "fetch_url", "mail_inbox", "droplets", "drive_search", "storage_status"}
}

// Register installs the enabled tools into reg. An empty enabled list
// installs every tool whose dependencies are available; tools named
// explicitly must be buildable.
func Register(reg *agent.ToolRegistry, deps Deps, enabled []string) error {
	log := deps.Log.Sub("tools")
	explicit := len(enabled) > 0
	if !explicit {
		enabled = Names()
	}

	for _, name := range enabled {
		build, ok := builders[name]
		if !ok {
			return fmt.Errorf("unknown tool %q", name)
		}
		tool, err := build(deps)
		if err != nil {
			if explicit {
				return fmt.Errorf("tool %s: %w", name, err)
			}
			log.Debug().Str("tool", name).Err(err).Msg("tool unavailable")
			continue
		}
		reg.Register(tool)
		log.Debug().Str("tool", name).Msg("tool registered")
	}
	return nil
}

// softFail reports an expected failure to the model instead of aborting.
func softFail(format string, args ...any) agent.ToolResult {
	return agent.ToolResult{NextPrompt: "Error: " + fmt.Sprintf(format, args...)}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
