// Package metrics instruments the sound core, pack store, and payload
// writer/loader with Prometheus metrics, adapted from the teacher's
// internal/api/observability.go debug server into this module's
// domain (SPEC_FULL.md §1 ambient stack, §2 domain stack).
package metrics

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mixerActiveVoices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_active_voice_count",
		Help: "Number of sound sources on the most recently mutated mixer node",
	})

	mixerEffectChainLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mixer_effect_chain_length",
		Help: "Number of effects on the most recently mutated mixer node's chain",
	})

	// packIOTotal's labels are bounded: op is one of "create"/"open"/
	// "add"/"extract"/"close"; result is "ok"/"error".
	packIOTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pack_io_total",
		Help: "Pack store operations by kind and outcome",
	}, []string{"op", "result"})

	payloadLoadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payload_load_duration_seconds",
		Help:    "Time to open, decrypt, and inflate a compiled-application payload",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})

	environmentReflectionTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sound_environment_reflection_ticks_total",
		Help: "Background reflection-simulation iterations across all sound environments",
	})

	preloadCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preload_cache_total",
		Help: "Preload cache lookups by outcome",
	}, []string{"result"}) // "hit", "miss"
)

// ObservabilityConfig configures the debug/metrics HTTP server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservabilityConfig binds to localhost only, matching the
// teacher's StartDebugServer default.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6061",
	}
}

// StartDebugServer starts the metrics/pprof server. It never binds off
// localhost unless ALLOW_DEBUG_EXTERNAL=true is set in the environment.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("metrics: debug server disabled")
		return nil
	}
	if cfg.ListenAddr != "127.0.0.1:6061" && cfg.ListenAddr != "localhost:6061" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("metrics: forcing debug server to localhost")
			cfg.ListenAddr = "127.0.0.1:6061"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("metrics: serving on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("metrics: debug server error: %v", err)
		}
	}()
	return nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UpdateMixerVoiceCount records the child-sound count of whichever mixer
// node last added or removed a sound.
func UpdateMixerVoiceCount(count int) { mixerActiveVoices.Set(float64(count)) }

// UpdateMixerEffectChainLength records the effect count of whichever
// mixer node last changed its effect chain.
func UpdateMixerEffectChainLength(count int) { mixerEffectChainLength.Set(float64(count)) }

// RecordPackIO increments the pack I/O counter for op, classifying by
// whether err is nil.
func RecordPackIO(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	packIOTotal.WithLabelValues(op, result).Inc()
}

// RecordPayloadLoad observes how long a payload.Load call took.
func RecordPayloadLoad(duration time.Duration) {
	payloadLoadLatency.Observe(duration.Seconds())
}

// RecordEnvironmentReflectionTick increments the reflection-simulation
// tick counter; called once per background-loop iteration.
func RecordEnvironmentReflectionTick() { environmentReflectionTicks.Inc() }

// RecordPreloadCacheLookup increments the preload cache hit/miss
// counter.
func RecordPreloadCacheLookup(hit bool) {
	if hit {
		preloadCacheHits.WithLabelValues("hit").Inc()
		return
	}
	preloadCacheHits.WithLabelValues("miss").Inc()
}
