package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const opTimeout = 5 * time.Second

type kvStore struct {
	db *sql.DB
}

// NewKVStore создаёт PostgreSQL-реализацию KVStore поверх таблицы kv.
func NewKVStore(store *Store) domain.KVStore {
	return &kvStore{db: store.DB()}
}

func (s *kvStore) Get(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(opCtx, `
		SELECT value FROM kv WHERE key = $1
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: select kv: %v", domain.ErrPersistence, err)
	}
	return value, nil
}

func (s *kvStore) Set(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(opCtx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("%w: upsert kv: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *kvStore) Remove(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(opCtx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%w: delete kv: %v", domain.ErrPersistence, err)
	}
	return nil
}

var _ domain.KVStore = (*kvStore)(nil)
