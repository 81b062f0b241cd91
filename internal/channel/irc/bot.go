// Package irc runs the agent loop behind an IRC bot built on girc.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/lrstanley/girc"
	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/channel"
	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/logging"
	"github.com/soyeahso/agentloop/internal/ui"
)

// maxLineBytes keeps each PRIVMSG well under the 512-byte protocol limit
// once the prefix and target are added.
const maxLineBytes = 400

// maxConcurrentPrompts bounds how many loop sessions the bot runs at once.
const maxConcurrentPrompts = 4

// Prompter runs one prompt through the agent loop. *agent.Loop satisfies it.
type Prompter interface {
	ProcessPrompt(ctx context.Context, req agent.Request) (*agent.Result, error)
	Tools() *agent.ToolRegistry
}

// Bot answers channel messages that mention its nick, and every private
// message, by running the agent loop.
type Bot struct {
	cfg      config.IRCConfig
	agentCfg config.AgentConfig
	loop     Prompter
	client   *girc.Client
	log      *logging.Logger

	// send delivers one line; replaced in tests.
	send func(target, line string)
	sem  chan struct{}

	mu      sync.RWMutex
	ctx     context.Context
	running bool
	lastErr string
}

var _ channel.Channel = (*Bot)(nil)

// New creates an IRC bot. Call Start to connect.
func New(cfg config.IRCConfig, agentCfg config.AgentConfig, loop Prompter, log *logging.Logger) *Bot {
	b := &Bot{
		cfg:      cfg,
		agentCfg: agentCfg,
		loop:     loop,
		log:      log.Sub("irc"),
		sem:      make(chan struct{}, maxConcurrentPrompts),
		ctx:      context.Background(),
	}
	b.client = girc.New(b.gircConfig())
	b.send = func(target, line string) { b.client.Cmd.Message(target, line) }
	b.client.Handlers.Add(girc.CONNECTED, b.onConnected)
	b.client.Handlers.Add(girc.PRIVMSG, b.onPrivmsg)
	b.client.Handlers.Add(girc.DISCONNECTED, b.onDisconnected)
	return b
}

func (b *Bot) gircConfig() girc.Config {
	port := b.cfg.Port
	if port == 0 {
		port = 6667
		if b.cfg.UseTLS {
			port = 6697
		}
	}
	gc := girc.Config{
		Server:  b.cfg.Server,
		Port:    port,
		Nick:    b.cfg.Nick,
		User:    b.cfg.Nick,
		Name:    "agentloop",
		SSL:     b.cfg.UseTLS,
		Version: "agentloop",
	}
	if b.cfg.UseTLS {
		gc.TLSConfig = &tls.Config{ServerName: b.cfg.Server}
	}
	switch {
	case b.cfg.SASL && b.cfg.Password != "":
		gc.SASL = &girc.SASLPlain{User: b.cfg.Nick, Pass: b.cfg.Password}
	case b.cfg.Password != "":
		gc.ServerPass = b.cfg.Password
	}
	return gc
}

func (b *Bot) ID() string { return "irc" }

// Status reports the connection state.
func (b *Bot) Status() channel.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return channel.Status{
		ChannelID: b.ID(),
		Connected: b.client.IsConnected(),
		Running:   b.running,
		LastError: b.lastErr,
	}
}

// Start connects and blocks until the connection closes or ctx is done.
// Prompts started by incoming messages are cancelled with ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.running = true
	b.lastErr = ""
	b.mu.Unlock()

	b.log.Info().
		Str("server", b.client.Config.Server).
		Int("port", b.client.Config.Port).
		Str("nick", b.cfg.Nick).
		Strs("channels", b.cfg.Channels).
		Bool("tls", b.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() { errCh <- b.client.Connect() }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		b.client.Close()
		err = ctx.Err()
	}

	b.mu.Lock()
	b.running = false
	if err != nil && ctx.Err() == nil {
		b.lastErr = err.Error()
	}
	b.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("irc connect: %w", err)
	}
	return nil
}

// Stop quits the server if connected.
func (b *Bot) Stop(context.Context) error {
	if b.client.IsConnected() {
		b.log.Info().Msg("disconnecting from IRC")
		b.client.Quit("agentloop shutting down")
	}
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
	return nil
}

func (b *Bot) nick() string {
	if b.client.IsConnected() {
		return b.client.GetNick()
	}
	return b.cfg.Nick
}

func (b *Bot) onConnected(_ *girc.Client, _ girc.Event) {
	b.log.Info().Str("nick", b.nick()).Msg("connected to IRC")
	for _, ch := range b.cfg.Channels {
		b.client.Cmd.Join(ch)
		b.log.Debug().Str("channel", ch).Msg("joining channel")
	}
}

func (b *Bot) onDisconnected(_ *girc.Client, _ girc.Event) {
	b.log.Warn().Msg("disconnected from IRC")
}

func (b *Bot) onPrivmsg(_ *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	from := e.Source.Name
	if strings.EqualFold(from, b.nick()) {
		return
	}
	if b.cfg.Owner != "" && !strings.EqualFold(from, b.cfg.Owner) {
		b.log.Debug().Str("nick", from).Msg("ignoring message from non-owner")
		return
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}

	inChannel := e.IsFromChannel()
	prompt, ok := addressed(body, b.nick(), inChannel)
	if !ok {
		return
	}
	target := from
	if inChannel {
		target = e.Params[0]
	}

	select {
	case b.sem <- struct{}{}:
	default:
		b.send(target, "I'm busy with other questions, try again in a moment.")
		return
	}

	b.mu.RLock()
	ctx := b.ctx
	b.mu.RUnlock()

	go func() {
		defer func() { <-b.sem }()
		b.answer(ctx, target, from, prompt)
	}()
}

// answer runs the loop for one prompt and sends rendered elements followed
// by the final text.
func (b *Bot) answer(ctx context.Context, target, from, prompt string) {
	log := b.log.With("target", target)
	log.Debug().Str("from", from).Msg("running prompt")

	var lines []string
	system := agent.BuildSystemPrompt(agent.PromptConfig{
		AgentName: b.agentCfg.Name,
		Base:      b.agentCfg.SystemPrompt,
		ToolNames: b.loop.Tools().Names(),
		ChannelID: target,
		UserName:  from,
	})
	maxRounds := b.agentCfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = agent.DefaultMaxRounds
	}

	res, err := b.loop.ProcessPrompt(ctx, agent.Request{
		System:    system,
		User:      prompt,
		MaxRounds: maxRounds,
		Renderer: agent.RenderFunc(func(el ui.Element) error {
			lines = append(lines, splitMessage(ui.Plain(el), maxLineBytes)...)
			return nil
		}),
	})
	if err != nil {
		log.Error().Err(err).Msg("prompt failed")
		b.send(target, from+": sorry, something went wrong answering that.")
		return
	}

	lines = append(lines, splitMessage(res.Text, maxLineBytes)...)
	for _, line := range lines {
		b.send(target, line)
	}
	log.Info().Int("lines", len(lines)).Int("roundsUsed", res.RoundsUsed).Msg("sent reply")
}

// addressed extracts the prompt from a message. Private messages are always
// prompts. Channel messages must mention nick; a leading "nick:" or "nick,"
// is stripped.
func addressed(body, nick string, inChannel bool) (string, bool) {
	body = strings.TrimSpace(body)
	if !inChannel {
		return body, body != ""
	}
	if nick == "" || !strings.Contains(strings.ToLower(body), strings.ToLower(nick)) {
		return "", false
	}
	if len(body) > len(nick) && strings.EqualFold(body[:len(nick)], nick) {
		rest := body[len(nick):]
		if rest[0] == ':' || rest[0] == ',' {
			body = strings.TrimSpace(rest[1:])
		}
	}
	return body, body != ""
}

// splitMessage breaks text into PRIVMSG-sized lines. Each input line becomes
// at least one output line; blank lines are dropped and long lines are cut at
// rune boundaries so no chunk exceeds maxLen bytes.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		chunks = append(chunks, line)
	}
	return chunks
}
