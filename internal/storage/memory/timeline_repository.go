package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// timelineRepositoryInMemory хранит историю переходов статусов по заказам.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{
		events: make(map[string][]domain.TimelineEvent),
	}
}

// Append добавляет событие в конец истории заказа.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.OrderID] = append(r.events[event.OrderID], event)
	return nil
}

// List возвращает копию истории заказа в порядке добавления.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.events[orderID]
	result := make([]domain.TimelineEvent, len(stored))
	copy(result, stored)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
