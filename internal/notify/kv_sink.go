package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// StaffInboxID — владелец ящика уведомлений персонала.
const StaffInboxID = "staff"

const kvSinkTimeout = 5 * time.Second

// Notification — запись в ящике уведомлений пользователя.
type Notification struct {
	ID        string           `json:"id"`
	Type      domain.EventType `json:"type"`
	OrderID   string           `json:"order_id,omitempty"`
	Message   string           `json:"message,omitempty"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// KVSink складывает уведомления в durable-хранилище под ключом
// notifications:<userId>. Broadcast-события без адресата не сохраняются:
// их доставляет внешний канал.
type KVSink struct {
	kv domain.KVStore
}

// NewKVSink создаёт KV-sink уведомлений.
func NewKVSink(kv domain.KVStore) *KVSink {
	return &KVSink{kv: kv}
}

// Emit дописывает событие в ящик адресата.
func (s *KVSink) Emit(event domain.Event) error {
	owner := event.CustomerID
	if event.ForStaff() {
		owner = StaffInboxID
	}
	if owner == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), kvSinkTimeout)
	defer cancel()

	key := "notifications:" + owner

	var inbox []Notification
	raw, err := s.kv.Get(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		return fmt.Errorf("load inbox: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &inbox); err != nil {
			// Повреждённый ящик перезаписываем заново.
			inbox = nil
		}
	}

	inbox = append(inbox, Notification{
		ID:        event.ID,
		Type:      event.Type,
		OrderID:   event.OrderID,
		Message:   event.Message,
		Link:      event.Link,
		CreatedAt: event.Timestamp,
	})

	updated, err := json.Marshal(inbox)
	if err != nil {
		return fmt.Errorf("marshal inbox: %w", err)
	}
	if err := s.kv.Set(ctx, key, updated); err != nil {
		return fmt.Errorf("save inbox: %w", err)
	}
	return nil
}

var _ domain.NotificationSink = (*KVSink)(nil)
