package cli

import (
	"context"
	"time"

	"github.com/soyeahso/agentloop/internal/channel"
	"github.com/soyeahso/agentloop/internal/channel/irc"
	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/gateway"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port  int
		bind  string
		noIRC bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket gateway and chat channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app) error {
				if port != 0 {
					a.cfg.Gateway.Port = port
				}
				if bind != "" {
					a.cfg.Gateway.Bind = bind
				}
				for _, issue := range config.Validate(&a.cfg) {
					a.log.Warn().Str("path", issue.Path).Msg(issue.Message)
				}

				loop, err := a.Loop(ctx)
				if err != nil {
					return err
				}
				gen, err := a.Generator(ctx)
				if err != nil {
					return err
				}
				ks, err := a.Knowledge()
				if err != nil {
					return err
				}

				channels := channel.NewRegistry(a.log)
				if a.cfg.IRC != nil && !noIRC {
					channels.Register(irc.New(*a.cfg.IRC, a.cfg.Agent, loop, a.log))
				}
				channels.StartAll(ctx)
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					if err := channels.StopAll(stopCtx); err != nil {
						a.log.Warn().Err(err).Msg("channels did not stop cleanly")
					}
				}()

				srv := gateway.New(a.cfg, a.log,
					gateway.WithLoop(loop),
					gateway.WithGenerator(gen),
					gateway.WithStorage(a.Storage()),
					gateway.WithKnowledge(ks),
					gateway.WithHooks(a.hooks),
				gateway.WithChannels(channels),
				)
				a.log.Info().
					Int("channels", channels.Count()).
					Strs("tools", loop.Tools().Names()).
					Msg("starting agentloop")
				return srv.Start(ctx)
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "gateway port (default gateway.port)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback, lan, auto, custom")
	cmd.Flags().BoolVar(&noIRC, "no-irc", false, "do not connect to IRC even if configured")
	return cmd
}
