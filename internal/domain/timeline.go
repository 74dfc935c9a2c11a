package domain

import "time"

// TimelineEvent описывает одно изменение в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID string
	// From/To — статусы до и после перехода; From пуст для создания заказа.
	From     OrderStatus
	To       OrderStatus
	Reason   string
	Occurred time.Time
}
