package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/embedding"
	"github.com/soyeahso/agentloop/internal/hooks"
	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/logging"
	"github.com/soyeahso/agentloop/internal/storage"
	"github.com/soyeahso/agentloop/internal/store"
	"github.com/soyeahso/agentloop/internal/tools"
	"github.com/spf13/cobra"
)

// app holds the services one command builds from config. Services are
// created on first use so that commands touching only the knowledge store
// never need model credentials.
type app struct {
	cfg   config.Config
	paths config.Paths
	log   *logging.Logger
	hooks *hooks.Manager

	db        *store.DB
	knowledge *store.KnowledgeStore
	embedder  embedding.Embedder
	inspector *storage.Inspector
	client    llm.Client
	loop      *agent.Loop
}

// newApp loads the config file and builds the logger it asks for. An
// explicit --log-level wins over logging.level.
func newApp() (*app, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	cfg.ApplyPaths(paths)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	l := logging.NewFromConfig(cfg.Logging, os.Stderr)
	a := &app{
		cfg:   cfg,
		paths: paths,
		log:   l,
		hooks: hooks.NewManager(l),
	}
	a.hooks.On(hooks.AnyEvent, "log", hooks.LogHandler(l.Sub("lifecycle"), zerolog.DebugLevel))
	return a, nil
}

// Close releases the services the command opened.
func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Knowledge opens the knowledge database, creating its directory.
func (a *app) Knowledge() (*store.KnowledgeStore, error) {
	if a.knowledge != nil {
		return a.knowledge, nil
	}
	if err := a.paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}
	db, err := store.Open(a.cfg.Knowledge.DBPath, a.log)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}
	a.db = db
	a.knowledge = store.NewKnowledgeStore(db)
	return a.knowledge, nil
}

// Embedder builds the configured embedder. Embedding falls back to the
// model API key when it has none of its own.
func (a *app) Embedder(ctx context.Context) (embedding.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	e, err := embedding.New(ctx, a.cfg.Embedding, a.cfg.Model.APIKey)
	if err != nil {
		return nil, err
	}
	a.embedder = e
	return e, nil
}

// Storage returns the inspector over the model cache directory.
func (a *app) Storage() *storage.Inspector {
	if a.inspector == nil {
		a.inspector = storage.NewInspector(a.cfg.Storage.CacheDir, a.cfg.Storage.QuotaBytes, a.log)
	}
	return a.inspector
}

// Client returns the completion client: the configured provider behind
// retries and model failover.
func (a *app) Client(ctx context.Context) (llm.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	reg, err := llm.NewRegistryFromConfig(ctx, a.cfg.Model, a.log)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}
	fallbacks := make([]string, 0, len(a.cfg.Model.Fallbacks))
	for _, fb := range a.cfg.Model.Fallbacks {
		fallbacks = append(fallbacks, fb.Model)
	}
	a.client = agent.NewFailoverClient(reg, a.cfg.Model.Model, fallbacks, a.cfg.Model.Retries, a.log)
	return a.client, nil
}

// Generator returns a single-shot generator over Client.
func (a *app) Generator(ctx context.Context) (*llm.TextGenerator, error) {
	client, err := a.Client(ctx)
	if err != nil {
		return nil, err
	}
	return &llm.TextGenerator{Client: client, Model: a.cfg.Model.Model, MaxTokens: a.cfg.Agent.MaxTokens}, nil
}

// Loop builds the agent loop with every tool the config enables.
func (a *app) Loop(ctx context.Context) (*agent.Loop, error) {
	if a.loop != nil {
		return a.loop, nil
	}
	client, err := a.Client(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := a.Tools(ctx)
	if err != nil {
		return nil, err
	}

	a.loop = agent.NewLoop(client, reg, agent.LoopConfig{
		Model:       a.cfg.Model.Model,
		MaxTokens:   a.cfg.Agent.MaxTokens,
		Temperature: a.cfg.Agent.Temperature,
	}, a.hooks, a.log)
	return a.loop, nil
}

// Tools builds a registry holding every tool the config enables.
func (a *app) Tools(ctx context.Context) (*agent.ToolRegistry, error) {
	deps, err := a.toolDeps(ctx)
	if err != nil {
		return nil, err
	}
	reg := agent.NewToolRegistry()
	if err := tools.Register(reg, deps, a.cfg.Tools.Enabled); err != nil {
		return nil, err
	}
	return reg, nil
}

// toolDeps connects the services behind the built-in tools. A service that
// cannot be built is left nil, which drops the tools needing it unless they
// are enabled explicitly.
func (a *app) toolDeps(ctx context.Context) (tools.Deps, error) {
	t := a.cfg.Tools
	deps := tools.Deps{
		Storage:          a.Storage(),
		Mailbox:          t.Mail.Mailbox,
		WeatherUserAgent: t.Weather.UserAgent,
		Log:              a.log,
	}

	ks, err := a.Knowledge()
	if err != nil {
		return deps, err
	}
	deps.Knowledge = ks

	if e, err := a.Embedder(ctx); err != nil {
		a.log.Debug().Err(err).Msg("embeddings unavailable, lookup uses full-text search")
	} else {
		deps.Embedder = e
	}

	if t.Mail.Server != "" {
		deps.Mail = &tools.IMAPSource{
			Addr:     t.Mail.Server,
			Username: t.Mail.Username,
			Password: t.Mail.Password,
			Timeout:  30 * time.Second,
		}
	}

	if t.DigitalOcean.Token != "" {
		lister, err := tools.NewGodoLister(ctx, t.DigitalOcean.Token, "")
		if err != nil {
			return deps, fmt.Errorf("digitalocean: %w", err)
		}
		deps.Droplets = lister
	}

	if t.Drive.CredentialsFile != "" {
		d, err := tools.NewGoogleDrive(ctx, t.Drive.CredentialsFile, t.Drive.TokenFile)
		if err != nil {
			a.log.Warn().Err(err).Msg("drive search unavailable")
		} else {
			deps.Drive = d
		}
	}
	return deps, nil
}

// systemPrompt renders the configured system prompt for the tools in loop.
func (a *app) systemPrompt(loop *agent.Loop, channelID string) string {
	return agent.BuildSystemPrompt(agent.PromptConfig{
		AgentName: a.cfg.Agent.Name,
		Base:      a.cfg.Agent.SystemPrompt,
		ToolNames: loop.Tools().Names(),
		ChannelID: channelID,
	})
}

// runApp builds the app for cmd, runs fn and releases the app.
func runApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
