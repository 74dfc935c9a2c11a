package domain

import "errors"

var (
	// ErrInvalidQuantity возвращается при попытке добавить в корзину количество меньше единицы.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrItemNotFound возвращается, если позиция с таким идентификатором отсутствует в корзине.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrEmptySelection возвращается при попытке оформить заказ без выбранных позиций.
	ErrEmptySelection = errors.New("no cart items selected for checkout")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidStatusTransition возвращается при запрещённом переходе статуса заказа.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrCancellationNotAllowed возвращается при отмене заказа в недопустимом статусе.
	ErrCancellationNotAllowed = errors.New("order cancellation not allowed in current status")
	// ErrCancelReasonRequired возвращается, если причина отмены не указана.
	ErrCancelReasonRequired = errors.New("cancellation reason is required")
	// ErrInvalidPaymentStatus возвращается при неизвестном статусе оплаты.
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	// ErrPersistence сигнализирует об ошибке durable-хранилища; состояние движков не изменяется.
	ErrPersistence = errors.New("persistence failure")
	// ErrKeyNotFound возвращается KV-хранилищем при отсутствии ключа.
	ErrKeyNotFound = errors.New("key not found")
	// ErrBookNotFound возвращается каталогом, если книга или вариация не найдены.
	ErrBookNotFound = errors.New("book not found in catalog")

	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка отсутствующего идентификатора покупателя.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка, если выбранная позиция отсутствует среди позиций корзины.
	ErrSelectionNotSubset = errors.New("selected identity is not present in cart items")
	// Ошибка дублирования составного ключа среди позиций корзины.
	ErrDuplicateCartItem = errors.New("duplicate cart item identity")

	// ErrIdempotencyKeyRequired возвращается при пустом idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired возвращается при пустом хэше запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists возвращается при повторном запросе с тем же ключом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch возвращается, если ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyRecordNotFound возвращается, если запись по ключу отсутствует.
	ErrIdempotencyRecordNotFound = errors.New("idempotency record not found")
)

// IsPersistence проверяет, является ли ошибка сбоем durable-хранилища.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}
