// Command apiserver runs the reportiq HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medtext/reportiq/internal/application/analysis"
	"github.com/medtext/reportiq/internal/config"
	"github.com/medtext/reportiq/internal/infrastructure/database/postgres"
	"github.com/medtext/reportiq/internal/infrastructure/database/postgres/repositories"
	"github.com/medtext/reportiq/internal/infrastructure/database/redis"
	"github.com/medtext/reportiq/internal/infrastructure/messaging/kafka"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/prometheus"
	"github.com/medtext/reportiq/internal/infrastructure/storage/minio"
	"github.com/medtext/reportiq/internal/infrastructure/textextract"
	"github.com/medtext/reportiq/internal/intelligence/medextract"
	httpapi "github.com/medtext/reportiq/internal/interfaces/http"
	"github.com/medtext/reportiq/internal/interfaces/http/handlers"
	"github.com/medtext/reportiq/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: config file not loaded, using environment and defaults: %v\n", err)
		cfg, err = config.LoadFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting reportiq API server", logging.Int("port", cfg.Server.Port))

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "reportiq",
		Subsystem:            "api",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("init metrics collector", logging.Err(err))
	}
	metrics := prometheus.NewAppMetrics(collector)

	ctx := context.Background()

	// Postgres is the system of record and must be up.
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connect postgres", logging.Err(err))
	}
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationPath); err != nil {
		logger.Fatal("run migrations", logging.Err(err))
	}
	repo := repositories.NewAnalysisRepository(pool, logger, metrics)

	// Cache, object store, and event bus degrade gracefully: the service
	// skips whichever of them is nil.
	var cache redis.Cache
	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", logging.Err(err))
	} else {
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, logger,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Redis.DefaultTTL),
			redis.WithMetrics(metrics),
		)
	}

	var store minio.ReportStore
	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		logger.Warn("object storage unavailable, document persistence disabled", logging.Err(err))
	} else {
		store = minio.NewReportStore(minioClient, cfg.MinIO.PresignExpiry, logger)
	}

	var publisher analysis.EventPublisher
	producer, err := kafka.NewProducer(cfg.Kafka, logger, metrics)
	if err != nil {
		logger.Warn("kafka unavailable, event publishing disabled", logging.Err(err))
	} else {
		defer producer.Close()
		publisher = producer
	}

	pipeline, err := medextract.NewPipeline(
		medextract.DefaultRangeTable(),
		medextract.PipelineConfig{
			MaxTextLength:  cfg.Extraction.MaxTextLength,
			IncludeRawText: cfg.Extraction.IncludeRawText,
		},
		prometheus.PipelineMetrics{App: metrics, Source: "api"},
		logger,
	)
	if err != nil {
		logger.Fatal("init extraction pipeline", logging.Err(err))
	}

	extractors := []textextract.TextExtractor{textextract.NewPlainTextExtractor()}
	if cfg.Extraction.ExtractorURL != "" {
		extractors = append(extractors,
			textextract.NewRemoteExtractor(cfg.Extraction.ExtractorURL, cfg.Extraction.ExtractorTimeout, logger))
	}

	svc, err := analysis.NewService(repo, pipeline, textextract.NewRouter(extractors...), cache, store, publisher, logger)
	if err != nil {
		logger.Fatal("init analysis service", logging.Err(err))
	}

	pingers := []handlers.Pinger{
		{Name: "postgres", Ping: pool.Ping},
	}
	if cache != nil {
		pingers = append(pingers, handlers.Pinger{Name: "redis", Ping: cache.Ping})
	}

	limiter := middleware.NewTokenBucketLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 5*time.Minute)
	defer limiter.Stop()

	rateCfg := middleware.DefaultRateLimitConfig()
	rateCfg.RequestsPerSecond = cfg.Server.RateLimitRPS
	rateCfg.BurstSize = cfg.Server.RateLimitBurst

	engine := httpapi.NewRouter(httpapi.RouterConfig{
		ServerConfig:   cfg.Server,
		ReportHandler:  handlers.NewReportHandler(svc, cfg.Server.MaxBodySize, logger),
		HealthHandler:  handlers.NewHealthHandler(pingers, metrics, logger),
		MetricsHandler: collector.Handler(),
		Metrics:        metrics,
		CORS:           middleware.DefaultCORSConfig(),
		RateLimit:      rateCfg,
		Limiter:        limiter,
		Logger:         logger,
	})

	srv := httpapi.NewServer(engine, cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("HTTP server failed", logging.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("HTTP server shutdown", logging.Err(err))
	}
}
