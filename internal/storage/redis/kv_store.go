package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const defaultDialTimeout = 5 * time.Second

// kvStore — реализация KVStore поверх Redis.
// Снимки корзины и заказов хранятся как непрозрачные байтовые значения без TTL.
type kvStore struct {
	client *redis.Client
}

// Open подключается к Redis и проверяет доступность сервера.
// Вторым значением возвращается функция закрытия клиента.
func Open(ctx context.Context, addr string) (domain.KVStore, func() error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: defaultDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	return &kvStore{client: client}, client.Close, nil
}

// NewKVStore оборачивает уже созданный клиент (для тестов с miniredis и т.п.).
func NewKVStore(client *redis.Client) domain.KVStore {
	return &kvStore{client: client}
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: redis get: %v", domain.ErrPersistence, err)
	}
	return value, nil
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *kvStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", domain.ErrPersistence, err)
	}
	return nil
}

var _ domain.KVStore = (*kvStore)(nil)
