package notify

import (
	"errors"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Fanout доставляет событие в несколько sink'ов последовательно.
// Сбой одного sink'а не мешает доставке в остальные.
type Fanout struct {
	sinks []domain.NotificationSink
}

// NewFanout собирает составной sink из непустых элементов.
func NewFanout(sinks ...domain.NotificationSink) *Fanout {
	kept := make([]domain.NotificationSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &Fanout{sinks: kept}
}

// Emit пересылает событие во все sink'и и агрегирует ошибки.
func (f *Fanout) Emit(event domain.Event) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Emit(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ domain.NotificationSink = (*Fanout)(nil)
