package kafka

import (
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// TopicNotifications — топик исходящих уведомлений магазина.
const TopicNotifications = "bookstore.notifications"

// publisher — минимальный контракт producer'а для sink.
type publisher interface {
	Publish(topic string, key string, payload interface{}) error
}

// Sink публикует доменные события в Kafka. Ключ партиционирования —
// адресат события: все уведомления одного пользователя попадают в одну
// партицию и сохраняют порядок.
type Sink struct {
	producer publisher
	topic    string
}

// NewSink создает Kafka-sink уведомлений.
func NewSink(producer *Producer) *Sink {
	return &Sink{producer: producer, topic: TopicNotifications}
}

// Emit отправляет событие в топик уведомлений.
func (s *Sink) Emit(event domain.Event) error {
	key := event.CustomerID
	if event.ForStaff() {
		key = "staff"
	}
	if key == "" {
		key = string(event.Type)
	}
	return s.producer.Publish(s.topic, key, event)
}

var _ domain.NotificationSink = (*Sink)(nil)
