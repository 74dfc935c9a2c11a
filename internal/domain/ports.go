package domain

import (
	"context"
	"time"
)

// KVStore — durable key-value хранилище снимков состояния.
// Любая ошибка реализации оборачивает ErrPersistence.
type KVStore interface {
	// Get возвращает значение по ключу или ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set сохраняет значение по ключу, перезаписывая предыдущее.
	Set(ctx context.Context, key string, value []byte) error
	// Remove удаляет ключ; отсутствие ключа ошибкой не считается.
	Remove(ctx context.Context, key string) error
}

// Catalog описывает взаимодействие с внешним каталогом книг.
type Catalog interface {
	// GetBook возвращает карточку книги/вариации или ErrBookNotFound.
	GetBook(bookID, variationID string) (BookRef, error)
	// DecrementStock списывает остаток под заказ и возвращает события
	// low-stock для позиций, опустившихся ниже порога. Ошибки остатков
	// не блокируют заказ: учёт склада здесь best-effort.
	DecrementStock(items []OrderItem) []Event
}

// CurrentUserProvider отдаёт профиль текущего пользователя сессии.
type CurrentUserProvider interface {
	// Current возвращает пользователя; для неавторизованной сессии — Guest().
	Current() User
}

// NotificationSink — внешний односторонний потребитель событий.
// Ядро не блокируется на ответе и не инспектирует результат доставки.
type NotificationSink interface {
	Emit(event Event) error
}

// EventDispatcher пересылает события, возвращённые мутаторами, в NotificationSink.
// Диспетчеризация fire-and-forget: ошибки доставки не влияют на результат операции.
type EventDispatcher interface {
	Dispatch(events ...Event)
}

// EventQueue буферизует события до асинхронной доставки (вариант outbox).
type EventQueue interface {
	Enqueue(event Event) (Event, error)
	PullPending(limit int) ([]Event, error)
	Stats() (EventQueueStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// EventQueueStats описывает текущее состояние backlog очереди событий.
type EventQueueStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// TimelineRepository хранит историю переходов статуса заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
