package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	AllowedOrigins []string // CORS and WebSocket origins; nil allows localhost
	JPEGQuality    int
	RateLimit      *RateLimitConfig
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	viewer      ViewerInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
}

// NewServer creates the API server.
//
// Background workers do NOT start until Start is called, so tests can
// construct the server and use Router without goroutines or listeners.
func NewServer(v ViewerInterface, frames FrameSource, opts ServerOptions) *Server {
	rl := DefaultRateLimitConfig
	if opts.RateLimit != nil {
		rl = *opts.RateLimit
	}

	s := &Server{
		viewer:      v,
		wsHub:       NewWebSocketHub(v, opts.AllowedOrigins),
		rateLimiter: NewIPRateLimiter(rl),
	}

	s.router = NewRouter(RouterConfig{
		Viewer:      v,
		Frames:      frames,
		RateLimiter: s.rateLimiter,
		CORSOrigins: corsPatterns(opts.AllowedOrigins),
		JPEGQuality: opts.JPEGQuality,
	})

	// WebSocket routes need the hub instance, so they are not part of
	// the generic NewRouter factory.
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start runs the hub, the state broadcaster and the HTTP listener until ctx
// is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.wsHub.Run(ctx)
	s.wsHub.StartBroadcastLoop(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		// Long-lived streams end when ctx does
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("🌐 API server starting")
		log.Info().Msgf("🎥 Frame: http://localhost%s/api/frame.png", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Stop()
	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	log.Info().Msg("🛑 API server stopped")
	return err
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop releases background resources that do not follow a context.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// corsPatterns passes configured origins through; none keeps the router
// default.
func corsPatterns(origins []string) []string {
	if len(origins) == 0 {
		return nil
	}
	return origins
}
