package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playback-orchestrator/internal/platform/config"
	"playback-orchestrator/internal/platform/logger"
	"playback-orchestrator/internal/platform/metrics"
	"playback-orchestrator/internal/session"
	"playback-orchestrator/internal/simhost"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	catalog, err := simhost.LoadCatalog(cfg.ManifestDir)
	if err != nil {
		log.Error("load manifests", "dir", cfg.ManifestDir, "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	reg := session.NewInMemoryRegistry()
	svc := session.NewService(reg, catalog, session.Options{
		Host:        simhost.DefaultConfig(),
		AutoPlay:    cfg.AutoPlay,
		LoadTimeout: cfg.LoadTimeout,
	}, log, met)
	h := session.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(reg.ActiveSessionCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"manifests", len(catalog),
		"autoplay", cfg.AutoPlay,
		"load_timeout", cfg.LoadTimeout.String(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := svc.Close(); err != nil {
		log.Error("close sessions", "error", err)
	}

	log.Info("server stopped")
}
