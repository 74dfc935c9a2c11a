package domain

// PaymentStatus описывает состояние оплаты заказа.
// Намеренно не связан со статусом доставки: комбинация
// delivered + payment pending допустима (наложенный платёж).
type PaymentStatus string

const (
	// PaymentStatusPending — оплата ещё не получена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid — оплата получена.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed — оплата не прошла.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — деньги возвращены покупателю.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentMethod — выбранный покупателем способ оплаты.
// Магазин не обрабатывает платёжные протоколы, значение только хранится.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodWallet         PaymentMethod = "wallet"
)
