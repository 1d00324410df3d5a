// Package api exposes a small diagnostics/control HTTP surface over a
// running engine process: the loaded packs, the mixer tree, and a way
// to trigger an out-of-band reflection-scene commit. It is deliberately
// thin — a read-mostly companion to the engine, not a game server.
package api

import (
	"context"
	"net/http"
	"time"

	"nvgtcore/internal/mixer"
)

// Server wraps the diagnostics router with a listening HTTP server and
// the rate limiter it owns, the way the engine's other long-running
// components (publishers, background loops) separate construction from
// Start/Stop.
type Server struct {
	httpServer  *http.Server
	router      http.Handler
	rateLimiter *IPRateLimiter
}

// NewServer builds a Server wired to the given mixer root, pack
// registry, and environment. Any of these may be nil if this process
// doesn't have one.
func NewServer(root *mixer.Mixer, packs *PackRegistry, env CommittableEnvironment) *Server {
	rl := NewIPRateLimiter(DefaultRateLimitConfig)
	router := NewRouter(RouterConfig{
		Mixer:       root,
		Packs:       packs,
		Environment: env,
		RateLimiter: rl,
	})
	return &Server{router: router, rateLimiter: rl}
}

// Router exposes the underlying handler, mainly for tests that want to
// drive it with httptest without binding a real port.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening on addr. It blocks until Stop is called or the
// server fails, matching net/http.Server.ListenAndServe's contract.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down and releases the rate limiter's
// background goroutine.
func (s *Server) Stop(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
