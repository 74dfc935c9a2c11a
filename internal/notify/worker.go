package notify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	notifyPublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookstore_notify_publish_attempts_total",
		Help: "Total number of notification publish attempts grouped by result.",
	}, []string{"result"})
	notifyPendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookstore_notify_pending_events",
		Help: "Current number of pending events in the notification queue.",
	})
	notifyOldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookstore_notify_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending notification event.",
	})
)

// WorkerOptions задаёт параметры доставляющего воркера.
type WorkerOptions struct {
	Logger         *log.Entry
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// WorkerOption настраивает Worker.
type WorkerOption func(*WorkerOptions)

// WithWorkerLogger задаёт logger воркера.
func WithWorkerLogger(logger *log.Entry) WorkerOption {
	return func(opts *WorkerOptions) { opts.Logger = logger }
}

// WithPollInterval задаёт частоту опроса очереди.
func WithPollInterval(interval time.Duration) WorkerOption {
	return func(opts *WorkerOptions) { opts.PollInterval = interval }
}

// WithBatchSize задаёт размер батча из очереди.
func WithBatchSize(batchSize int) WorkerOption {
	return func(opts *WorkerOptions) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток доставки до failed.
func WithMaxAttempts(maxAttempts int) WorkerOption {
	return func(opts *WorkerOptions) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) WorkerOption {
	return func(opts *WorkerOptions) { opts.RetryBaseDelay = delay }
}

// Worker доставляет отложенные события из очереди в NotificationSink.
type Worker struct {
	queue          domain.EventQueue
	sink           domain.NotificationSink
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker создаёт воркера доставки уведомлений.
func NewWorker(queue domain.EventQueue, sink domain.NotificationSink, options ...WorkerOption) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "notify-worker")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Worker{
		queue:          queue,
		sink:           sink,
		logger:         logger,
		pollInterval:   opts.PollInterval,
		batchSize:      opts.BatchSize,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
	}
}

// Run запускает периодический polling очереди до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.queue == nil || w.sink == nil {
		w.logger.Warn("notify worker is disabled: queue or sink is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один polling-цикл.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.refreshBacklogMetrics()

	events, err := w.queue.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending events")
		return
	}
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		if ctx.Err() != nil {
			return
		}

		if err := w.emitWithRetry(ctx, event); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Error("event delivery failed after retries")
			notifyPublishAttempts.WithLabelValues("failed").Inc()

			if markErr := w.queue.MarkFailed(event.ID); markErr != nil {
				w.logger.WithError(markErr).WithField("event_id", event.ID).Warn("failed to mark event as failed")
			}
			continue
		}

		notifyPublishAttempts.WithLabelValues("ok").Inc()
		if err := w.queue.MarkSent(event.ID); err != nil {
			w.logger.WithError(err).WithField("event_id", event.ID).Warn("failed to mark event as sent")
		}
	}

	w.refreshBacklogMetrics()
}

func (w *Worker) emitWithRetry(ctx context.Context, event domain.Event) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.sink.Emit(event)
		if err == nil {
			return nil
		}
		lastErr = err
		notifyPublishAttempts.WithLabelValues("retry").Inc()

		if attempt == w.maxAttempts {
			break
		}

		// Exponential backoff: base * 2^(attempt-1).
		delay := w.retryBaseDelay << (attempt - 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (w *Worker) refreshBacklogMetrics() {
	stats, err := w.queue.Stats()
	if err != nil {
		return
	}
	notifyPendingEvents.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		notifyOldestPendingAge.Set(0)
		return
	}
	notifyOldestPendingAge.Set(time.Since(stats.OldestPendingAt).Seconds())
}
