// Command worker consumes queued report documents and runs the extraction
// pipeline on them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

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
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
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

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting reportiq worker",
		logging.Int("concurrency", cfg.Worker.Concurrency),
		logging.String("group_id", cfg.Kafka.GroupID))

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "reportiq",
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("init metrics collector", logging.Err(err))
	}
	metrics := prometheus.NewAppMetrics(collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker needs all of Postgres, MinIO, and Kafka: it reads queued
	// documents from object storage and persists analysis results.
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connect postgres", logging.Err(err))
	}
	defer pool.Close()
	repo := repositories.NewAnalysisRepository(pool, logger, metrics)

	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		logger.Fatal("connect object storage", logging.Err(err))
	}
	store := minio.NewReportStore(minioClient, cfg.MinIO.PresignExpiry, logger)

	producer, err := kafka.NewProducer(cfg.Kafka, logger, metrics)
	if err != nil {
		logger.Fatal("connect kafka", logging.Err(err))
	}
	defer producer.Close()

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

	pipeline, err := medextract.NewPipeline(
		medextract.DefaultRangeTable(),
		medextract.PipelineConfig{
			MaxTextLength:  cfg.Extraction.MaxTextLength,
			IncludeRawText: cfg.Extraction.IncludeRawText,
		},
		prometheus.PipelineMetrics{App: metrics, Source: "worker"},
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

	svc, err := analysis.NewService(repo, pipeline, textextract.NewRouter(extractors...), cache, store, producer, logger)
	if err != nil {
		logger.Fatal("init analysis service", logging.Err(err))
	}
	worker, err := analysis.NewWorker(svc, logger)
	if err != nil {
		logger.Fatal("init worker", logging.Err(err))
	}

	handler := func(ctx context.Context, msg *kafka.Message) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.Worker.ProcessingTimeout)
		defer cancel()
		return worker.HandleReportReceived(ctx, msg)
	}

	// Each consumer joins the same group, so partitions spread across them.
	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	consumers := make([]*kafka.Consumer, 0, concurrency)
	for i := 0; i < concurrency; i++ {
		consumer, err := kafka.NewConsumer(cfg.Kafka, []string{kafka.TopicReportReceived}, logger,
			kafka.WithDeadLetterProducer(producer),
			kafka.WithConsumerMetrics(metrics),
			kafka.WithCommitInterval(cfg.Worker.CommitInterval),
		)
		if err != nil {
			logger.Fatal("init consumer", logging.Err(err))
		}
		consumer.Subscribe(kafka.TopicReportReceived, handler)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal("start consumer", logging.Err(err))
		}
		consumers = append(consumers, consumer)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	for _, consumer := range consumers {
		if err := consumer.Close(); err != nil {
			logger.Error("consumer close", logging.Err(err))
		}
	}
}
