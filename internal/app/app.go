// Package app wires configuration, logging, the match log and the render
// loop into a ready replay session for the command binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"match-replay/internal/camera"
	"match-replay/internal/config"
	"match-replay/internal/logging"
	"match-replay/internal/matchlog"
	"match-replay/internal/render"
	"match-replay/internal/scene"
	"match-replay/internal/viewer"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Session is a fully constructed replay: assets are not loaded yet.
type Session struct {
	Config config.AppConfig
	Log    zerolog.Logger
	Viewer *viewer.Context
	Loop   *render.Loop
}

// envFiles are tried in order; the first one found wins.
var envFiles = []string{".env", "../.env"}

func loadDotEnv() string {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			return f
		}
	}
	return ""
}

// Bootstrap loads .env, the config file at configPath (optional), sets up
// logging and builds the session.
func Bootstrap(configPath string) (*Session, error) {
	envFile := loadDotEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.Setup(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if envFile != "" {
		logger.Info().Str("file", envFile).Msg("✅ Loaded environment")
	} else {
		logger.Debug().Msg("💡 No .env file found, using environment variables only")
	}

	ml, err := matchlog.Load(cfg.Playback.DataPath)
	if err != nil {
		return nil, fmt.Errorf("load match log: %w", err)
	}
	logger.Info().
		Str("path", cfg.Playback.DataPath).
		Int("frames", ml.Len()).
		Dur("duration", cfg.Playback.Duration).
		Msg("📂 Match log loaded")

	opts, err := viewerOptions(cfg)
	if err != nil {
		return nil, err
	}
	v := viewer.New(ml, opts)

	loop := render.NewLoop(v, render.NewRasterizer(cfg.Video.Width, cfg.Video.Height), cfg.Video.FPS)

	return &Session{
		Config: cfg,
		Log:    logger,
		Viewer: v,
		Loop:   loop,
	}, nil
}

func viewerOptions(cfg config.AppConfig) (viewer.Options, error) {
	opts := viewer.DefaultOptions()
	opts.Duration = cfg.Playback.Duration

	initial, ok := camera.Presets[cfg.Camera.InitialPreset]
	if !ok {
		return opts, fmt.Errorf("camera.initialPreset: unknown preset %q", cfg.Camera.InitialPreset)
	}
	opts.Camera.FOV = cfg.Camera.FOV
	opts.Camera.DampingFactor = cfg.Camera.DampingFactor
	opts.Camera.MinDistance = cfg.Camera.MinDistance
	opts.Camera.MaxDistance = cfg.Camera.MaxDistance
	opts.Camera.Initial = initial

	if cfg.Assets.Dir != "" {
		opts.Loader = scene.GLTFLoader{Root: cfg.Assets.Dir}
	}
	return opts, nil
}

// LoadAssets loads the models and starts playback when autoplay is set.
// Asset failures leave the session permanently not ready.
func (s *Session) LoadAssets(ctx context.Context) error {
	log := logging.Component("assets")
	if err := s.Viewer.LoadAssets(ctx); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("dir", s.Config.Assets.Dir).Msg("❌ Model file missing")
		} else {
			log.Error().Err(err).Msg("❌ Asset loading failed")
		}
		return err
	}

	st := s.Viewer.Snapshot()
	log.Info().Int("models", st.AssetsLoaded).Msg("✅ Assets loaded")

	if s.Config.Playback.Autoplay {
		if err := s.Viewer.Play(); err != nil {
			return err
		}
		log.Info().Msg("▶️ Autoplay started")
	}
	return nil
}

// Close stops playback timers.
func (s *Session) Close() {
	s.Viewer.Close()
}
