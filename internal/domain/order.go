package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в магазине.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, обработка ещё не началась.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ подтверждён и собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен покупателю (терминальный).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled — заказ отменён до отгрузки (терминальный).
	OrderStatusCanceled OrderStatus = "canceled"
)

// transitions задаёт граф допустимых переходов статуса.
// Любой переход вне графа отклоняется с ErrInvalidStatusTransition.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminal сообщает, что из статуса нет дальнейших переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// CanCancel сообщает, допустима ли отмена заказа из данного статуса.
func (s OrderStatus) CanCancel() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// CanTransition проверяет переход from → to по графу статусов.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem — неизменяемый снимок позиции корзины на момент создания заказа.
// После создания заказа не меняется, даже если цена каталога изменилась.
type OrderItem struct {
	Key        ItemKey `json:"key"`
	Qty        int32   `json:"qty"`
	PriceMinor int64   `json:"price_minor"`
	Book       BookRef `json:"book"`
	// CreatedAt фиксирует момент снятия снимка.
	CreatedAt time.Time `json:"created_at"`
}

// SubtotalMinor возвращает стоимость позиции: qty * price.
func (i OrderItem) SubtotalMinor() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string        `json:"id"`
	CustomerID      string        `json:"customer_id"`
	Items           []OrderItem   `json:"items"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	ShippingAddress string        `json:"shipping_address"`
	Notes           string        `json:"notes,omitempty"`
	// AmountMinor — итоговая сумма заказа; всегда равна сумме позиций.
	AmountMinor  int64     `json:"amount_minor"`
	CancelReason string    `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone возвращает глубокую копию заказа (позиции копируются).
func (o *Order) Clone() Order {
	clone := *o
	if o.Items != nil {
		clone.Items = make([]OrderItem, len(o.Items))
		copy(clone.Items, o.Items)
	}
	return clone
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.SubtotalMinor()
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
