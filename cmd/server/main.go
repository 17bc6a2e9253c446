package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/linklytics/gateway/internal/config"
	"github.com/linklytics/gateway/internal/infra"
	"github.com/linklytics/gateway/internal/observability"
	"github.com/linklytics/gateway/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  "linklytics-gateway",
		Environment:  os.Getenv("ENVIRONMENT"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	logger := obs.Logger

	db, err := infra.NewPostgresPool(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	cache, err := infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
	if err != nil {
		logger.Error("failed to connect to cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cache.Close()
	logger.Info("cache connected")

	// The broker is optional: without it the event bus serves in-process
	// subscribers only.
	broker := connectBroker(cfg, logger)
	if broker != nil {
		defer broker.Close()
	}

	srv, err := server.NewServer(cfg, db, cache, broker, obs)
	if err != nil {
		logger.Error("failed to build server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("base_url", cfg.App.BaseURL),
			slog.String("default_domain", cfg.App.DefaultDomain),
		)
		if err := srv.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal (Ctrl+C or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.HTTP.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", slog.String("error", err.Error()))
	}
	srv.Bus.Close()
	obs.Shutdown(shutdownCtx)

	logger.Info("server exited")
}

func connectBroker(cfg *config.Config, logger *slog.Logger) *amqp.Connection {
	if cfg.Broker.URL == "" {
		return nil
	}
	conn, err := infra.NewBrokerConn(cfg.Broker.URL)
	if err != nil {
		logger.Warn("broker unavailable, running without event mirror",
			slog.String("error", err.Error()))
		return nil
	}
	logger.Info("broker connected", slog.String("exchange", cfg.Broker.Exchange))
	return conn
}
