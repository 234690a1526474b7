package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"visra.app/studio/internal/api"
	"visra.app/studio/internal/app"
	"visra.app/studio/internal/auth"
	"visra.app/studio/internal/config"
	"visra.app/studio/internal/core"
	"visra.app/studio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, dotenv := config.Load()

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Console: cfg.LogFormat == "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if !dotenv {
		log.Info("no .env file found, relying on environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ws, err := app.OpenWorkspace(cfg, log)
	if err != nil {
		log.Fatal("failed to open workspace", zap.Error(err))
	}
	defer ws.Close()

	gen, err := ws.NewGenerator(context.Background())
	if err != nil {
		log.Fatal("failed to initialize generation provider", zap.Error(err))
	}
	conv := ws.Conversation(gen)

	// Seed the hub so the first client receives the restored state.
	hub := api.NewHub(cfg.AllowedOrigins, log)
	state := conv.Snapshot()
	hub.Broadcast(core.Event{Kind: core.EventSessions, Sessions: conv.Sessions()})
	hub.Broadcast(core.Event{Kind: core.EventState, State: &state})
	unsubscribe := conv.Subscribe(hub.Broadcast)
	defer unsubscribe()

	apiHandler := api.NewAPIHandler(conv, ws.Prefs, auth.NewIssuer(cfg.JWTSecret, auth.DefaultTTL), hub, log)
	router := api.NewRouter(apiHandler, api.RouterConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, log)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 15*time.Second, // ?wait=true holds the request through the reveal
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	conv.Stop()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exited gracefully")
}
