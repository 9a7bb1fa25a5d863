package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"match-replay/internal/app"
	"match-replay/internal/desktop"
	"match-replay/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", os.Getenv("REPLAY_CONFIG"), "path to a config file (yaml, json or toml)")
	flag.Parse()

	s, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.LoadAssets(ctx)

	cfg := s.Config
	game := desktop.NewGame(s.Viewer, s.Loop, cfg.Video.Width, cfg.Video.Height, logging.Component("desktop"))
	game.CloseOn(ctx.Done())

	log.Info().Str("session", s.Viewer.ID()).Msg("🖥️ Opening replay window")
	if err := desktop.Run(game, "Match Replay"); err != nil {
		log.Error().Err(err).Msg("❌ Window closed with error")
		os.Exit(1)
	}
}
