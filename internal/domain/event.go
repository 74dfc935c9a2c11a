package domain

import "time"

// EventType определяет тип события жизненного цикла.
type EventType string

const (
	// Order события
	EventTypeOrderPlaced    EventType = "order.placed"
	EventTypeOrderConfirmed EventType = "order.confirmed"
	EventTypeOrderShipped   EventType = "order.shipped"
	EventTypeOrderDelivered EventType = "order.delivered"
	EventTypeOrderCanceled  EventType = "order.canceled"
	// NewOrderForStaff уведомляет персонал о новом заказе покупателя.
	EventTypeNewOrderForStaff EventType = "order.new_for_staff"

	// Catalog события
	EventTypeLowStock     EventType = "catalog.low_stock"
	EventTypeNewBookAdded EventType = "catalog.new_book"

	// Broadcast события
	EventTypePromotionalOffer  EventType = "broadcast.promo"
	EventTypeSystemMaintenance EventType = "broadcast.maintenance"
)

// Event — типизированное уведомление для NotificationSink.
// Несёт минимальные данные для рендеринга сообщения и опциональный deep-link.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	// OrderID заполняется для order-событий.
	OrderID string `json:"order_id,omitempty"`
	// CustomerID — адресат события; пустое значение означает broadcast.
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	// BookID/Title заполняются для catalog-событий.
	BookID    string    `json:"book_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	Link      string    `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ForStaff сообщает, адресовано ли событие персоналу магазина.
func (e Event) ForStaff() bool {
	return e.Type == EventTypeNewOrderForStaff || e.Type == EventTypeLowStock
}

// NewOrderEvent создаёт событие жизненного цикла заказа.
func NewOrderEvent(eventType EventType, orderID, customerID string) Event {
	return Event{
		Type:       eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Timestamp:  time.Now().UTC(),
	}
}
