package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"nvgtcore/internal/mixer"
)

// RouterConfig configures the diagnostics/control HTTP surface. Mixer,
// Packs and Environment are all optional: with a nil Mixer or
// Environment the handler reports 404, and with nil Packs the pack
// listing is an empty JSON array, so a process can expose whichever of
// the three it actually has running.
type RouterConfig struct {
	Mixer       *mixer.Mixer
	Packs       *PackRegistry
	Environment CommittableEnvironment

	RateLimiter     *IPRateLimiter
	RateLimitConfig RateLimitConfig
	CORSOrigins     []string
	DisableLogging  bool
}

// NewRouter builds the chi router for the diagnostics surface. It does
// not start listening; call Server.Start for that.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	rl := cfg.RateLimiter
	if rl == nil {
		limitCfg := cfg.RateLimitConfig
		if limitCfg.RequestsPerSecond == 0 {
			limitCfg = DefaultRateLimitConfig
		}
		rl = NewIPRateLimiter(limitCfg)
	}
	r.Use(rl.Middleware)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &routerHandlers{mixer: cfg.Mixer, packs: cfg.Packs, environment: cfg.Environment}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Route("/diag", func(r chi.Router) {
		r.Get("/mixer", h.handleMixerTree)
		r.Get("/packs", h.handlePacks)
		r.Post("/environment/commit", h.handleTriggerEnvironmentCommit)
	})

	return r
}
