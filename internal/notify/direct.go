package notify

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

// Direct — синхронный диспетчер: события уходят в sink немедленно.
// Ошибки доставки логируются и проглатываются — эмиссия fire-and-forget,
// исход бизнес-операции от неё не зависит.
type Direct struct {
	sink    domain.NotificationSink
	logger  *log.Entry
	metrics *metrics.StorefrontMetrics
}

// NewDirect создаёт синхронный диспетчер.
func NewDirect(sink domain.NotificationSink, logger *log.Entry) *Direct {
	if logger == nil {
		logger = log.WithField("component", "notify-direct")
	}
	return &Direct{sink: sink, logger: logger}
}

// NewDirectWithMetrics создаёт синхронный диспетчер с метриками доставки.
func NewDirectWithMetrics(sink domain.NotificationSink, m *metrics.StorefrontMetrics, logger *log.Entry) *Direct {
	dispatcher := NewDirect(sink, logger)
	dispatcher.metrics = m
	return dispatcher
}

// Dispatch пересылает события в sink по одному.
func (d *Direct) Dispatch(events ...domain.Event) {
	if d.sink == nil {
		return
	}
	for _, event := range events {
		if err := d.sink.Emit(event); err != nil {
			d.logger.WithError(err).WithField("event_type", event.Type).Warn("notification emit failed")
			d.record(event, "error")
			continue
		}
		d.record(event, "ok")
	}
}

func (d *Direct) record(event domain.Event, result string) {
	if d.metrics != nil {
		d.metrics.RecordEventDispatched(string(event.Type), result)
	}
}

var _ domain.EventDispatcher = (*Direct)(nil)
