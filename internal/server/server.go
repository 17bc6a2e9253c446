package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/linklytics/gateway/internal/api"
	"github.com/linklytics/gateway/internal/config"
	"github.com/linklytics/gateway/internal/events"
	"github.com/linklytics/gateway/internal/metrics"
	"github.com/linklytics/gateway/internal/middleware"
	"github.com/linklytics/gateway/internal/observability"
	"github.com/linklytics/gateway/internal/repository"
	"github.com/linklytics/gateway/internal/service"
	"github.com/linklytics/gateway/internal/webhook"
)

const serviceName = "linklytics-gateway"

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Server bundles the HTTP server with the background components that must
// be torn down alongside it.
type Server struct {
	HTTP *http.Server
	Bus  *events.Bus
}

// NewRouter wires the full dependency graph and returns the configured Gin
// router plus the event bus it publishes to. broker may be nil; the bus
// then runs without an external mirror.
func NewRouter(
	cfg *config.Config,
	db *pgxpool.Pool,
	cache *redis.Client,
	broker *amqp.Connection,
	obs *observability.Observability,
) (*gin.Engine, *events.Bus, error) {
	logger := obs.Logger

	m, err := metrics.New(obs.MeterProvider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}

	// Storage layer.
	linkRepo := repository.NewLinkRepository(db)
	cachedRepo := repository.NewCachedLinkRepository(linkRepo, cache, cfg.Cache.TTL, m)
	eventRepo := repository.NewEventRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)

	// Fan-out: in-process bus, optionally mirrored to the broker.
	var mirror events.Mirror
	if broker != nil {
		bm, err := events.NewBrokerMirror(broker, cfg.Broker.Exchange, logger)
		if err != nil {
			logger.Warn("event bus mirror disabled",
				slog.String("error", err.Error()))
		} else {
			mirror = bm
		}
	}
	bus := events.NewBus(mirror, logger)
	dispatcher := webhook.NewDispatcher(webhookRepo, nil, logger)

	// Geo enrichment degrades to unknowns when no endpoint is configured.
	var geoProvider service.GeoProvider = service.NoopGeoProvider{}
	if cfg.Geo.Endpoint != "" {
		geoProvider = service.NewHTTPGeoProvider(cfg.Geo.Endpoint, cfg.Geo.Timeout)
	}
	geo := service.NewGeoResolver(geoProvider, logger)

	// Domain services.
	resolver := service.NewLinkResolver(linkRepo, cachedRepo, cfg.App.DefaultDomain, logger)
	slugGen := service.NewSlugGenerator(cfg.App.SlugLen, cfg.App.SlugRetries)
	linkService := service.NewLinkService(linkRepo, cachedRepo, slugGen, cfg.App.BaseURL, cfg.App.DefaultDomain, logger)
	dedup := service.NewRedisDeduplicator(cache, cfg.Cache.DedupTTL)
	engine := service.NewRedirectEngine(
		resolver, eventRepo, linkRepo, linkRepo,
		dedup, geo, bus, dispatcher, m,
		cfg.App.IPHashSecret, logger,
	)
	analytics := service.NewAnalyticsService(eventRepo)

	handler := api.NewHandler(linkService, engine, analytics, db, &redisPinger{client: cache}, m, logger)

	router := gin.New()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.Logging(logger))
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(obs.MetricsHandler))
	handler.RegisterRoutes(router)

	return router, bus, nil
}

// NewServer wires the router into a configured HTTP server.
func NewServer(
	cfg *config.Config,
	db *pgxpool.Pool,
	cache *redis.Client,
	broker *amqp.Connection,
	obs *observability.Observability,
) (*Server, error) {
	router, bus, err := NewRouter(cfg, db, cache, broker, obs)
	if err != nil {
		return nil, err
	}

	return &Server{
		HTTP: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Bus: bus,
	}, nil
}
