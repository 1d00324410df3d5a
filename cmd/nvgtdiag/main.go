// Command nvgtdiag runs the diagnostics/control HTTP surface
// (internal/api.Server) standalone against a fresh output mixer, pack
// registry, and reflection environment — useful for exercising the
// surface without wiring it into a full engine process.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nvgtcore/internal/api"
	"nvgtcore/internal/config"
	"nvgtcore/internal/metrics"
	"nvgtcore/internal/mixer"
	"nvgtcore/internal/spatial"
)

func main() {
	cfg := config.Load()

	if err := metrics.StartDebugServer(metrics.DefaultObservabilityConfig()); err != nil {
		log.Printf("nvgtdiag: metrics debug server not started: %v", err)
	}

	root := mixer.NewOutputMixer()
	packs := api.NewPackRegistry()
	env := spatial.NewEnvironment(10 * time.Millisecond)
	defer env.Release()

	srv := api.NewServer(root, packs, env)

	go func() {
		log.Printf("nvgtdiag: listening on %s", cfg.Diag.Addr)
		if err := srv.Start(cfg.Diag.Addr); err != nil {
			log.Fatalf("nvgtdiag: server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Printf("nvgtdiag: shutdown error: %v", err)
	}
}
