package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// queueRecord хранит событие и служебные поля для in-memory реализации.
type queueRecord struct {
	event      domain.Event
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// eventQueueInMemory — простое in-memory хранилище отложенных уведомлений.
type eventQueueInMemory struct {
	mu      sync.RWMutex
	records map[string]*queueRecord
}

// NewEventQueue создаёт in-memory реализацию EventQueue.
func NewEventQueue() domain.EventQueue {
	return &eventQueueInMemory{records: make(map[string]*queueRecord)}
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с заполненным ID.
func (q *eventQueueInMemory) Enqueue(event domain.Event) (domain.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q.records[event.ID] = &queueRecord{
		event:     event,
		status:    "pending",
		createdAt: now,
		updatedAt: now,
	}
	return event, nil
}

// PullPending возвращает до limit событий со статусом `pending`,
// отсортированных по времени постановки.
func (q *eventQueueInMemory) PullPending(limit int) ([]domain.Event, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	pending := make([]*queueRecord, 0, len(q.records))
	for _, rec := range q.records {
		if rec.status == "pending" {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].createdAt.Before(pending[j].createdAt)
	})

	result := make([]domain.Event, 0, limit)
	for _, rec := range pending {
		result = append(result, rec.event)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats возвращает размер backlog и возраст самого старого pending-события.
func (q *eventQueueInMemory) Stats() (domain.EventQueueStats, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := domain.EventQueueStats{}
	for _, rec := range q.records {
		if rec.status != "pending" {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной доставки.
func (q *eventQueueInMemory) MarkSent(id string) error {
	return q.setStatus(id, "sent")
}

// MarkFailed помечает событие недоставленным после исчерпания попыток.
func (q *eventQueueInMemory) MarkFailed(id string) error {
	return q.setStatus(id, "failed")
}

func (q *eventQueueInMemory) setStatus(id, status string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[id]
	if !ok {
		return domain.ErrKeyNotFound
	}
	rec.status = status
	rec.attemptCnt++
	rec.updatedAt = time.Now().UTC()
	return nil
}

var _ domain.EventQueue = (*eventQueueInMemory)(nil)
