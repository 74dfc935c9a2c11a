package domain

import "time"

// IdempotencyStatus — стадия обработки повторяемого запроса.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — первый запрос с этим ключом ещё в работе.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — ответ сохранён и может быть воспроизведён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка упала, сохранён ответ с ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord фиксирует результат запроса по idempotency-key.
// RequestHash защищает от переиспользования ключа с другим телом запроса.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       IdempotencyStatus
	ResponseBody []byte
	HTTPStatus   int
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid сообщает, входит ли статус в известный набор.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	}
	return false
}

// Expired сообщает, истёк ли срок хранения записи на момент now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return r.TTLAt.Before(now)
}

// Replayable сообщает, можно ли отдать сохранённый ответ повторному запросу.
// Запись в processing воспроизводить нельзя: первый запрос ещё не завершён.
func (r IdempotencyRecord) Replayable() bool {
	return r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed
}
