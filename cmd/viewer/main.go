package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"match-replay/internal/api"
	"match-replay/internal/app"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
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

	cfg := s.Config
	log.Info().Msg("⚽ ================================")
	log.Info().Msg("⚽  MATCH REPLAY VIEWER")
	log.Info().Msg("⚽ ================================")
	log.Info().
		Str("session", s.Viewer.ID()).
		Int("width", cfg.Video.Width).
		Int("height", cfg.Video.Height).
		Int("fps", cfg.Video.FPS).
		Msg("🎮 Config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(s.Viewer, s.Loop, api.ServerOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JPEGQuality:    cfg.Video.JPEGQuality,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Asset failures keep the session not ready but do not stop the server.
		s.LoadAssets(gctx)
		return nil
	})
	g.Go(func() error { return s.Loop.Run(gctx) })
	g.Go(func() error { return server.Start(gctx, cfg.Server.Addr()) })
	g.Go(func() error {
		debugCfg := api.DefaultObservabilityConfig()
		debugCfg.Enabled = cfg.Server.DebugAddr != ""
		debugCfg.ListenAddr = cfg.Server.DebugAddr
		if err := api.StartDebugServer(gctx, debugCfg); err != nil {
			log.Warn().Err(err).Msg("⚠️ Debug server disabled")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("❌ Viewer stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("👋 Shutdown complete")
}
