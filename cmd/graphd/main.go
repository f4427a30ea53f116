package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chaingraph/internal/application"
	"chaingraph/internal/config"
	"chaingraph/internal/infrastructure/blobstore"
	"chaingraph/internal/infrastructure/explorer"
	"chaingraph/internal/infrastructure/kafka"
	"chaingraph/internal/infrastructure/logging"
	"chaingraph/internal/infrastructure/screening"
	"chaingraph/internal/infrastructure/telemetry"
	"chaingraph/internal/interfaces/toolapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	if logWriter != nil {
		defer logWriter.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "chaingraph", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init failed", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown failed", "err", err)
			}
		}()
	}

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("artifact store error: %v", err)
	}
	defer closeBackend()

	var store application.ArtifactStore = backend
	var pinger toolapi.StorePinger = backend
	if cached, err := blobstore.NewCachedStore(backend, blobstore.CacheConfig{
		Addr: cfg.RedisAddr,
		TTL:  time.Hour,
	}); err != nil {
		slog.Warn("redis cache disabled", "addr", cfg.RedisAddr, "err", err)
	} else {
		store = cached
		pinger = cached
	}

	source, err := explorer.NewClient(explorer.Config{
		BaseURL:  cfg.ExplorerURL,
		APIKey:   cfg.ExplorerAPIKey,
		PageSize: cfg.ExplorerPageSize,
	})
	if err != nil {
		log.Fatalf("explorer client error: %v", err)
	}

	var screener application.ScreeningPort
	if cfg.ScreeningAPIKey != "" {
		client, err := screening.NewClient(screening.Config{
			URL:    cfg.ScreeningURL,
			APIKey: cfg.ScreeningAPIKey,
		})
		if err != nil {
			log.Fatalf("screening client error: %v", err)
		}
		screener = client
	} else {
		slog.Warn("sanctions screening disabled: SCREENING_API_KEY not set")
	}

	var publisher application.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka producer error: %v", err)
		}
		defer producer.Close()
		publisher = producer
	}

	metrics := toolapi.NewMetrics()
	crawler, err := application.NewCrawler(source, store, metrics, application.CrawlerConfig{
		Workers: cfg.CrawlWorkers,
		Pause:   cfg.CrawlPause,
	})
	if err != nil {
		log.Fatalf("crawler error: %v", err)
	}

	service, err := application.NewService(crawler, store, screener, publisher)
	if err != nil {
		log.Fatalf("service error: %v", err)
	}

	server, err := toolapi.NewServer(service, pinger, metrics, toolapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		log.Fatalf("http server error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("tool server listening",
		"addr", cfg.HTTPAddr,
		"blob_driver", cfg.BlobDriver,
		"screening", screener != nil,
		"events", publisher != nil,
		"version", version,
	)
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("http server error: %v", err)
	}
	slog.Info("shutdown complete")
}

func openBackend(cfg config.Config) (blobstore.Backend, func(), error) {
	switch cfg.BlobDriver {
	case config.DriverMySQL:
		store, err := blobstore.NewMySQLStore(cfg.BlobDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := blobstore.NewSQLiteStore(cfg.BlobPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}
