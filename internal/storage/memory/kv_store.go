package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// kvStoreInMemory — простая in-memory реализация KVStore.
type kvStoreInMemory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewKVStore возвращает in-memory KV-хранилище для локальной разработки и тестов.
func NewKVStore() domain.KVStore {
	return &kvStoreInMemory{items: make(map[string][]byte)}
}

// Get возвращает копию значения или ErrKeyNotFound.
func (s *kvStoreInMemory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	// Отдаём копию, чтобы избежать непредсказуемых мутаций извне.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set сохраняет копию значения по ключу.
func (s *kvStoreInMemory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.items[key] = stored
	return nil
}

// Remove удаляет ключ; отсутствие ключа не считается ошибкой.
func (s *kvStoreInMemory) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

var _ domain.KVStore = (*kvStoreInMemory)(nil)
