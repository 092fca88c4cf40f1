package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finrag/finrag/internal/admin"
	"github.com/finrag/finrag/internal/activity"
	"github.com/finrag/finrag/internal/applog"
	"github.com/finrag/finrag/internal/auth"
	"github.com/finrag/finrag/internal/ingest"
	"github.com/finrag/finrag/internal/llm"
	"github.com/finrag/finrag/internal/metrics"
	"github.com/finrag/finrag/internal/rag"
	"github.com/finrag/finrag/internal/ratelimit"
	"github.com/finrag/finrag/internal/session"
	"github.com/finrag/finrag/internal/settings"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", "", "Listen address (overrides config/env)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if cfg.JWTSecret == "" {
		slog.Error("FINRAG_JWT_SECRET is required")
		os.Exit(1)
	}
	debugMode = cfg.Debug

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s, err := store.New(cfg.DBPath, cfg.EmbeddingDim)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	appLog := applog.NewHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}), s)
	defer appLog.Close()
	slog.SetDefault(slog.New(appLog))

	settingsCache := settings.NewCache(s)
	if err := settingsCache.Seed(context.Background()); err != nil {
		slog.Error("seeding settings", "error", err)
		os.Exit(1)
	}

	chatProvider, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		slog.Error("creating chat provider", "error", err)
		os.Exit(1)
	}
	embedProvider, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		slog.Error("creating embedding provider", "error", err)
		os.Exit(1)
	}

	index := vectorindex.New(s)
	sessions := session.New(s, slog.Default())
	stopEviction := sessions.StartEvictionLoop(time.Minute, 24*time.Hour)
	defer stopEviction()

	ingestor := ingest.New(s, index, embedProvider, slog.Default())
	engine := rag.New(index, sessions, settingsCache, chatProvider, embedProvider)
	authSvc := auth.New(s, []byte(cfg.JWTSecret))
	activityLog := activity.New(s)
	recorder := metrics.NewRecorder(s)
	adminSvc := admin.New(s, activityLog, settingsCache, index, authSvc, recorder)
	rl := ratelimit.New(settingsCache)
	defer rl.Close()

	mux := http.NewServeMux()
	registerRoutes(mux, m, recorder, routeDeps{
		auth:     authSvc,
		settings: settingsCache,
		store:    s,
		index:    index,
		ingestor: ingestor,
		engine:   engine,
		sessions: sessions,
		admin:    adminSvc,
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Middleware chain: recovery -> cors -> requestid -> auth -> ratelimit -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = rateLimitMiddleware(rl, handler)
	handler = authMiddleware(authSvc, handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // document upload can run long
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
