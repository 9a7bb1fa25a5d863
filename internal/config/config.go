// Package config provides centralized configuration management for the
// replay viewer.
//
// Values are layered: built-in defaults, then an optional JSON/YAML file,
// then environment variables (REPLAY_ prefix, dots become underscores, so
// server.port is REPLAY_SERVER_PORT). PORT is honored as well.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "REPLAY"

// =============================================================================
// VIDEO & CANVAS CONFIGURATION
// =============================================================================

// VideoConfig holds the rendered canvas settings.
type VideoConfig struct {
	Width       int `mapstructure:"width"`
	Height      int `mapstructure:"height"`
	FPS         int `mapstructure:"fps"` // display rate of the render loop
	JPEGQuality int `mapstructure:"jpegQuality"`
}

// DefaultVideo returns the default video configuration.
func DefaultVideo() VideoConfig {
	return VideoConfig{
		Width:       1280,
		Height:      720,
		FPS:         60,
		JPEGQuality: 80,
	}
}

// =============================================================================
// PLAYBACK CONFIGURATION
// =============================================================================

// PlaybackConfig controls the match log and its replay speed.
type PlaybackConfig struct {
	DataPath string        `mapstructure:"dataPath"`
	Duration time.Duration `mapstructure:"duration"` // whole log is stretched over this
	Autoplay bool          `mapstructure:"autoplay"`
}

// DefaultPlayback returns the default playback configuration.
func DefaultPlayback() PlaybackConfig {
	return PlaybackConfig{
		DataPath: "data/position.json",
		Duration: 60 * time.Second,
		Autoplay: false,
	}
}

// =============================================================================
// ASSET CONFIGURATION
// =============================================================================

// AssetConfig locates the model files. An empty Dir uses built-in
// placeholder models.
type AssetConfig struct {
	Dir string `mapstructure:"dir"`
}

// DefaultAssets returns the default asset configuration.
func DefaultAssets() AssetConfig {
	return AssetConfig{Dir: ""}
}

// =============================================================================
// CAMERA CONFIGURATION
// =============================================================================

// CameraConfig bounds the free orbit camera.
type CameraConfig struct {
	FOV           float64 `mapstructure:"fov"`
	DampingFactor float64 `mapstructure:"dampingFactor"`
	MinDistance   float64 `mapstructure:"minDistance"`
	MaxDistance   float64 `mapstructure:"maxDistance"`
	InitialPreset string  `mapstructure:"initialPreset"`
}

// DefaultCamera returns the default camera configuration.
func DefaultCamera() CameraConfig {
	return CameraConfig{
		FOV:           75,
		DampingFactor: 0.05,
		MinDistance:   10,
		MaxDistance:   200,
		InitialPreset: "overhead",
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	DebugAddr      string   `mapstructure:"debugAddr"` // empty disables the debug server
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		DebugAddr:      "127.0.0.1:6060",
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Video    VideoConfig    `mapstructure:"video"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Assets   AssetConfig    `mapstructure:"assets"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Server   ServerConfig   `mapstructure:"server"`
	LogLevel string         `mapstructure:"logLevel"`
	LogJSON  bool           `mapstructure:"logJSON"`
}

// Default returns the configuration with no overrides applied.
func Default() AppConfig {
	return AppConfig{
		Video:    DefaultVideo(),
		Playback: DefaultPlayback(),
		Assets:   DefaultAssets(),
		Camera:   DefaultCamera(),
		Server:   DefaultServer(),
		LogLevel: "info",
	}
}

// Load builds the configuration. path names an optional config file; an
// empty path skips the file layer.
func Load(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return AppConfig{}, fmt.Errorf("bind PORT: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate rejects values the viewer cannot run with.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		errs = append(errs, fmt.Errorf("video size %dx%d must be positive", c.Video.Width, c.Video.Height))
	}
	if c.Video.FPS <= 0 {
		errs = append(errs, fmt.Errorf("video fps %d must be positive", c.Video.FPS))
	}
	if c.Playback.Duration <= 0 {
		errs = append(errs, fmt.Errorf("playback duration %s must be positive", c.Playback.Duration))
	}
	if c.Camera.MinDistance <= 0 || c.Camera.MaxDistance < c.Camera.MinDistance {
		errs = append(errs, fmt.Errorf("camera distance bounds [%g, %g] invalid", c.Camera.MinDistance, c.Camera.MaxDistance))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

// Addr returns the API listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

func setDefaults(v *viper.Viper, d AppConfig) {
	v.SetDefault("video.width", d.Video.Width)
	v.SetDefault("video.height", d.Video.Height)
	v.SetDefault("video.fps", d.Video.FPS)
	v.SetDefault("video.jpegQuality", d.Video.JPEGQuality)

	v.SetDefault("playback.dataPath", d.Playback.DataPath)
	v.SetDefault("playback.duration", d.Playback.Duration)
	v.SetDefault("playback.autoplay", d.Playback.Autoplay)

	v.SetDefault("assets.dir", d.Assets.Dir)

	v.SetDefault("camera.fov", d.Camera.FOV)
	v.SetDefault("camera.dampingFactor", d.Camera.DampingFactor)
	v.SetDefault("camera.minDistance", d.Camera.MinDistance)
	v.SetDefault("camera.maxDistance", d.Camera.MaxDistance)
	v.SetDefault("camera.initialPreset", d.Camera.InitialPreset)

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.debugAddr", d.Server.DebugAddr)
	v.SetDefault("server.allowedOrigins", d.Server.AllowedOrigins)

	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logJSON", d.LogJSON)
}
