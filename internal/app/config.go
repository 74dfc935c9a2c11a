package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Драйверы KV-хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Режимы доставки уведомлений.
const (
	NotifyDirect = "direct"
	NotifyQueue  = "queue"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver string
	PostgresDSN   string
	RedisAddr     string

	KafkaBrokers string

	NotifyMode         string
	NotifyPollInterval time.Duration
	NotifyBatchSize    int
	NotifyMaxAttempts  int

	LowStockThreshold int32
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		StorageDriver:      StorageMemory,
		NotifyMode:         NotifyDirect,
		NotifyPollInterval: time.Second,
		NotifyBatchSize:    100,
		NotifyMaxAttempts:  3,
		LowStockThreshold:  3,
	}
}

// LoadConfigFromEnv читает конфигурацию из окружения поверх значений по умолчанию.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.StorageDriver = envString("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = envString("REDIS_ADDR", cfg.RedisAddr)
	cfg.KafkaBrokers = envString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.NotifyMode = envString("NOTIFY_MODE", cfg.NotifyMode)

	var err error
	if cfg.NotifyPollInterval, err = envDuration("NOTIFY_POLL_INTERVAL", cfg.NotifyPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.NotifyBatchSize, err = envInt("NOTIFY_BATCH_SIZE", cfg.NotifyBatchSize); err != nil {
		return Config{}, err
	}
	if cfg.NotifyMaxAttempts, err = envInt("NOTIFY_MAX_ATTEMPTS", cfg.NotifyMaxAttempts); err != nil {
		return Config{}, err
	}
	threshold, err := envInt("LOW_STOCK_THRESHOLD", int(cfg.LowStockThreshold))
	if err != nil {
		return Config{}, err
	}
	cfg.LowStockThreshold = int32(threshold)

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность конфигурации до старта зависимостей.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for storage driver %q", c.StorageDriver)
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	switch c.NotifyMode {
	case NotifyDirect, NotifyQueue:
	default:
		return fmt.Errorf("unknown notify mode %q", c.NotifyMode)
	}

	return nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
