package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	ExplorerURL      string
	ExplorerAPIKey   string
	ExplorerPageSize int
	ScreeningURL     string
	ScreeningAPIKey  string
	HTTPAddr         string
	BlobDriver       string
	BlobPath         string
	BlobDSN          string
	RedisAddr        string
	OtelEndpoint     string
	KafkaBrokers     []string
	KafkaTopic       string
	CrawlWorkers     int
	CrawlPause       time.Duration
	LogLevel         string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	explorerURL := lookupDefault(source, "EXPLORER_URL", "https://deep-index.moralis.io/api/v2.2")
	explorerAPIKey, _ := source.Lookup("EXPLORER_API_KEY")
	pageSize, err := parseIntEnv(source, "EXPLORER_PAGE_SIZE", 100)
	if err != nil {
		return Config{}, err
	}

	screeningURL := lookupDefault(source, "SCREENING_URL", "https://api.trmlabs.com/public/v1/sanctions/screening")
	screeningAPIKey, _ := source.Lookup("SCREENING_API_KEY")

	blobDriver := strings.ToLower(lookupDefault(source, "BLOB_DRIVER", DriverSQLite))
	blobPath := lookupDefault(source, "BLOB_PATH", "chaingraph.db")
	blobDSN, _ := source.Lookup("BLOB_DSN")
	switch blobDriver {
	case DriverSQLite:
		if strings.TrimSpace(blobPath) == "" {
			return Config{}, errors.New("BLOB_PATH is required for the sqlite driver")
		}
	case DriverMySQL:
		if strings.TrimSpace(blobDSN) == "" {
			return Config{}, errors.New("BLOB_DSN is required for the mysql driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown BLOB_DRIVER %q", blobDriver)
	}

	crawlWorkers, err := parseIntEnv(source, "CRAWL_WORKERS", 4)
	if err != nil {
		return Config{}, err
	}
	if crawlWorkers < 1 {
		return Config{}, errors.New("CRAWL_WORKERS must be >= 1")
	}

	crawlPause := 200 * time.Millisecond
	if raw, ok := source.Lookup("CRAWL_PAUSE"); ok && raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CRAWL_PAUSE: %w", err)
		}
		crawlPause = duration
	}

	logMaxSize, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	redisAddr, _ := source.Lookup("REDIS_ADDR")
	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	logFile, _ := source.Lookup("LOG_FILE")

	return Config{
		ExplorerURL:      explorerURL,
		ExplorerAPIKey:   explorerAPIKey,
		ExplorerPageSize: pageSize,
		ScreeningURL:     screeningURL,
		ScreeningAPIKey:  screeningAPIKey,
		HTTPAddr:         lookupDefault(source, "HTTP_ADDR", ":8080"),
		BlobDriver:       blobDriver,
		BlobPath:         blobPath,
		BlobDSN:          blobDSN,
		RedisAddr:        strings.TrimSpace(redisAddr),
		OtelEndpoint:     strings.TrimSpace(otelEndpoint),
		KafkaBrokers:     parseList(source, "KAFKA_BROKERS"),
		KafkaTopic:       lookupDefault(source, "KAFKA_TOPIC", "chaingraph-events"),
		CrawlWorkers:     crawlWorkers,
		CrawlPause:       crawlPause,
		LogLevel:         lookupDefault(source, "LOG_LEVEL", "info"),
		LogFile:          logFile,
		LogMaxSizeMB:     logMaxSize,
		LogMaxBackups:    logMaxBackups,
	}, nil
}

func lookupDefault(source EnvSource, key, defaultValue string) string {
	if raw, ok := source.Lookup(key); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	return defaultValue
}

func parseIntEnv(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

// parseList splits a comma-separated value; an unset or empty variable
// yields nil, which disables the consumer (e.g. kafka publishing).
func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(item); value != "" {
			values = append(values, value)
		}
	}
	return values
}
