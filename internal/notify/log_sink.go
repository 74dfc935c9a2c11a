package notify

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// LogSink пишет события в лог. Используется в разработке и как
// fallback, когда Kafka не сконфигурирован.
type LogSink struct {
	logger *log.Entry
}

// NewLogSink создаёт лог-sink.
func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.WithField("component", "notification-sink")
	}
	return &LogSink{logger: logger}
}

// Emit записывает событие в лог и никогда не возвращает ошибку.
func (s *LogSink) Emit(event domain.Event) error {
	s.logger.WithFields(log.Fields{
		"event_type":  event.Type,
		"order_id":    event.OrderID,
		"customer_id": event.CustomerID,
		"book_id":     event.BookID,
	}).Info("notification")
	return nil
}

var _ domain.NotificationSink = (*LogSink)(nil)
