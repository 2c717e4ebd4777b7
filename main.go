package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lethe/charon/internal/env"
	"github.com/lethe/charon/internal/server"
)

var (
	addr      string
	reuseport bool
)

var rootCmd = &cobra.Command{
	Use:   "charon",
	Short: "Line-based multiplayer server over telnet",
	Long: `Line-based multiplayer server over telnet

Accepts raw telnet connections, negotiates binary transmission, terminal
type, and linemode with each client, and batches everything clients type
into per-tick events for the hosted world. Ships with a small chat lobby.
`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&addr, "addr", "a", "", "listen address (overrides CHARON_ADDR)")
	flags.BoolVar(&reuseport, "reuseport", false, "set SO_REUSEPORT on the listener")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if addr != "" {
		conf.Addr = addr
	}
	if reuseport {
		conf.Reuseport = true
	}

	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	s := server.New(server.Options{
		Addr:             conf.Addr,
		Reuseport:        conf.Reuseport,
		Tick:             conf.Tick,
		IdleWindow:       conf.IdleWindow,
		HandshakeTimeout: conf.HandshakeTimeout,
		Log:              logger,
	})
	if err := s.Listen(); err != nil {
		return err
	}

	logger.Info().Str("addr", conf.Addr).Msg("started")
	lobby := newLobby(s, logger)
	return s.Run(ctx, lobby.tick)
}
