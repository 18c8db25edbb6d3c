package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/mesh-service/config"
	"github.com/cwrk-planet/mesh-service/internal/memnet"
	"github.com/cwrk-planet/mesh-service/internal/mesh"
	"github.com/cwrk-planet/mesh-service/internal/postgres"
	"github.com/cwrk-planet/mesh-service/internal/topic"
	httpx "github.com/cwrk-planet/mesh-service/internal/transport/http"
	"github.com/cwrk-planet/mesh-service/internal/transport/ws"
	"github.com/cwrk-planet/mesh-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting mesh-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version,
		"backend", cfg.Mesh.Backend)

	// --- network client (black box за узким интерфейсом) ---
	var client mesh.Client
	switch cfg.Mesh.Backend {
	case "postgres":
		client = postgres.New(cfg.Postgres.DSN, cfg.Mesh.HistoryLimit)
	default:
		client = memnet.New(cfg.Mesh.HistoryLimit)
	}

	session := mesh.NewSession(client, mesh.SessionConfig{
		PeerWait: cfg.PeerWaitDuration(),
	})
	namer := topic.NewNamer(cfg.Mesh.App, cfg.Mesh.Version)

	// Подключаемся в фоне: без сети сервис всё равно поднимается и отвечает,
	// /readyz покажет состояние
	go func() {
		if err := session.EnsureConnected(context.Background()); err != nil {
			slog.Warn("initial connect failed", "err", err)
		}
	}()

	// --- HTTP + WS ---
	wsServer := ws.NewServer(session, namer)
	handler := httpx.NewHandler(session, namer)
	router := httpx.NewRouter(handler, session, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	if err := session.Teardown(ctxShutdown); err != nil {
		slog.Warn("session teardown failed", "err", err)
	}
	slog.Info("stopped")
}
