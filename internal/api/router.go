package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"match-replay/internal/camera"
	"match-replay/internal/imagecache"
	"match-replay/internal/render"
	"match-replay/internal/viewer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// ViewerInterface defines the replay session methods used by the API.
// viewer.Context implements it; tests substitute a mock.
type ViewerInterface interface {
	Snapshot() viewer.State
	Play() error
	Pause()
	TogglePlay() (bool, error)
	Seek(frame int) bool
	SetCameraPreset(name string) error
	ToggleBallFollow() camera.Mode
	Orbit(left, up float64)
	Zoom(factor float64)
	Pan(dx, dy float64)
	HandleKey(key string) bool
	Pointer(y, height float64)
	HoverControls(over bool)
	Subscribe(fn func(viewer.State)) func()
}

// FrameSource hands out the last rendered frame. render.Loop implements it.
type FrameSource interface {
	Latest() *render.Frame
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Viewer: mockViewer,
//	    Frames: mockFrames,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Viewer is the replay session (required)
	Viewer ViewerInterface

	// Frames serves rendered images. Frame routes answer 503 when nil.
	Frames FrameSource

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost on any port is allowed.
	CORSOrigins []string

	// Images caches encoded frames. If nil, a private cache is created.
	Images *imagecache.Cache

	// JPEGQuality for /api/frame.jpg; zero uses DefaultJPEGQuality.
	JPEGQuality int

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies.
type routerHandlers struct {
	viewer      ViewerInterface
	frames      FrameSource
	images      *imagecache.Cache
	jpegQuality int

	streamClients atomic.Int32
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It is pure: no goroutines besides the rate limiter janitor, no listeners.
// Safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - order matters
	r.Use(middleware.RequestID)
	if !cfg.DisableLogging {
		r.Use(hlog.NewHandler(log.Logger))
		r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", d).
				Msg("request")
		}))
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		viewer:      cfg.Viewer,
		frames:      cfg.Frames,
		images:      cfg.Images,
		jpegQuality: cfg.JPEGQuality,
	}
	if h.images == nil {
		h.images = imagecache.New(imagecache.DefaultMaxEntries)
	}
	if h.jpegQuality <= 0 {
		h.jpegQuality = DefaultJPEGQuality
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)

		r.Route("/playback", func(r chi.Router) {
			r.Post("/toggle", h.handleToggle)
			r.Post("/play", h.handlePlay)
			r.Post("/pause", h.handlePause)
			r.Post("/seek", h.handleSeek)
		})

		r.Route("/camera", func(r chi.Router) {
			r.Get("/presets", h.handleGetPresets)
			r.Post("/preset", h.handlePreset)
			r.Post("/follow", h.handleFollow)
			r.Post("/orbit", h.handleOrbit)
			r.Post("/zoom", h.handleZoom)
			r.Post("/pan", h.handlePan)
		})

		r.Route("/input", func(r chi.Router) {
			r.Post("/key", h.handleKey)
			r.Post("/pointer", h.handlePointer)
		})

		r.Get("/frame.png", h.handleFramePNG)
		r.Get("/frame.jpg", h.handleFrameJPEG)
		r.Get("/stream.mjpeg", h.handleMJPEG)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}
