package notify

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Queue — диспетчер, откладывающий события в очередь; доставкой
// занимается Worker. Используется, когда sink медленный или сетевой.
type Queue struct {
	queue  domain.EventQueue
	logger *log.Entry
}

// NewQueue создаёт отложенный диспетчер поверх очереди событий.
func NewQueue(queue domain.EventQueue, logger *log.Entry) *Queue {
	if logger == nil {
		logger = log.WithField("component", "notify-queue")
	}
	return &Queue{queue: queue, logger: logger}
}

// Dispatch ставит события в очередь. Сбой постановки только логируется:
// уведомления не важнее самой операции.
func (q *Queue) Dispatch(events ...domain.Event) {
	for _, event := range events {
		if _, err := q.queue.Enqueue(event); err != nil {
			q.logger.WithError(err).WithField("event_type", event.Type).Warn("event enqueue failed")
		}
	}
}

var _ domain.EventDispatcher = (*Queue)(nil)
