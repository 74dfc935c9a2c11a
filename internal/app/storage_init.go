package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/redis"
)

// initKVStore открывает KV-хранилище по выбранному драйверу.
// Возвращает хранилище и функцию закрытия подключения.
func initKVStore(ctx context.Context, cfg Config, logger *log.Entry) (domain.KVStore, func(), error) {
	switch cfg.StorageDriver {
	case StorageMemory:
		logger.Info("using in-memory kv store")
		return memory.NewKVStore(), func() {}, nil

	case StoragePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		logger.Info("using postgres kv store")
		closeFn := func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres connection")
			}
		}
		return postgres.NewKVStore(store), closeFn, nil

	case StorageRedis:
		store, closeClient, err := redis.Open(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis: %w", err)
		}
		logger.WithField("addr", cfg.RedisAddr).Info("using redis kv store")
		closeFn := func() {
			if err := closeClient(); err != nil {
				logger.WithError(err).Warn("failed to close redis client")
			}
		}
		return store, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
