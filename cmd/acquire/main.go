package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/acquire/api"
	"github.com/use-agent/acquire/cache"
	"github.com/use-agent/acquire/cdp"
	"github.com/use-agent/acquire/config"
	"github.com/use-agent/acquire/engine"
	"github.com/use-agent/acquire/extract"
	"github.com/use-agent/acquire/orchestrator"
	"github.com/use-agent/acquire/search"
	"github.com/use-agent/acquire/session"
	"github.com/use-agent/acquire/storage"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("acquire starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
	)

	// ── 3. Artifact store (cookies, session state) ──────────────────
	var store storage.Store
	if cfg.Storage.Path != "" {
		fs, err := storage.NewFileStore(cfg.Storage.Path)
		if err != nil {
			slog.Error("failed to open file store", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		store = fs
	} else {
		store = storage.NewMemoryStore()
	}

	// ── 4. Session manager ──────────────────────────────────────────
	cdpOpts := cdp.Options{
		CallTimeout:   cfg.CDP.CallTimeout,
		PollInterval:  cfg.CDP.PollInterval,
		StaleAfter:    cfg.CDP.StaleAfter,
		SweepInterval: cfg.CDP.SweepInterval,
	}
	sessions := session.NewManager(cfg.Session, cfg.Browser, cdpOpts, store)
	defer sessions.Stop()

	// ── 5. Fetch engines ────────────────────────────────────────────
	engines := []engine.Engine{
		engine.NewHTTPEngine(cfg.Engine.HTTPTimeout),
		engine.NewPooledEngine(cfg.Engine.PoolMaxConnsPerHost, cfg.Engine.PoolIdleTimeout, cfg.Engine.HTTPTimeout),
		engine.NewBrowserEngine(cfg.Browser),
		engine.NewAttachedEngine(sessions, cfg.Engine.AttachEndpoint),
	}

	// ── 6. Cache, extraction, orchestrators ─────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	orch := orchestrator.New(engines, cc, extract.NewDefault(), cfg.Batch)
	searchOrch := search.NewOrchestrator(orch, nil)

	// ── 7. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(orch, searchOrch, sessions, cfg, cc, startTime)

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// sessions.Stop() runs via defer, persisting cookies and closing browsers.
	slog.Info("acquire stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
