package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/httpapi"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/notify"
	"github.com/vladislavdragonenkov/bookstore/internal/service/cart"
	"github.com/vladislavdragonenkov/bookstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/bookstore/internal/service/identity"
	"github.com/vladislavdragonenkov/bookstore/internal/service/order"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	KV          domain.KVStore
	Catalog     *catalog.Service
	Users       *identity.Static
	Carts       *cart.Engine
	Orders      *order.Engine
	Dispatcher  domain.EventDispatcher
	Queue       domain.EventQueue
	Worker      *notify.Worker
	Idempotency domain.IdempotencyRepository
	Metrics     *metrics.StorefrontMetrics
	Server      *httpapi.Server
	Producer    *kafka.Producer

	closeStorage func()
	logger       *log.Entry
}

// NewDependencies создаёт и связывает все зависимости приложения:
// хранилище -> каталог -> корзина -> диспетчер -> заказы -> HTTP.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	kv, closeStorage, err := initKVStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.NewStorefrontMetrics()
	shop := catalog.NewService(cfg.LowStockThreshold, logger.WithField("component", "catalog"))
	users := identity.NewStatic()
	carts := cart.NewEngineWithMetrics(kv, m, logger.WithField("component", "cart-engine"))

	// Уведомления: durable-ящик в KV всегда, Kafka при наличии брокеров.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	var sink domain.NotificationSink = notify.NewKVSink(kv)
	if producer != nil {
		sink = notify.NewFanout(sink, kafka.NewSink(producer))
	}

	var dispatcher domain.EventDispatcher
	var queue domain.EventQueue
	var worker *notify.Worker
	switch cfg.NotifyMode {
	case NotifyQueue:
		queue = memory.NewEventQueue()
		dispatcher = notify.NewQueue(queue, logger.WithField("component", "notify-queue"))
		worker = notify.NewWorker(queue, sink,
			notify.WithWorkerLogger(logger.WithField("component", "notify-worker")),
			notify.WithPollInterval(cfg.NotifyPollInterval),
			notify.WithBatchSize(cfg.NotifyBatchSize),
			notify.WithMaxAttempts(cfg.NotifyMaxAttempts),
		)
	default:
		dispatcher = notify.NewDirectWithMetrics(sink, m, logger.WithField("component", "notify-direct"))
	}

	idempotencyRepo := memory.NewIdempotencyRepository()
	timelineRepo := memory.NewTimelineRepository()

	orders := order.NewEngine(kv, carts, users,
		order.WithCatalog(shop),
		order.WithTimeline(timelineRepo),
		order.WithDispatcher(dispatcher),
		order.WithMetrics(m),
		order.WithLogger(logger.WithField("component", "order-engine")),
	)

	server := httpapi.NewServer(carts, orders, shop, users, dispatcher, idempotencyRepo,
		logger.WithField("component", "http-server"))

	return &Dependencies{
		KV:          kv,
		Catalog:     shop,
		Users:       users,
		Carts:       carts,
		Orders:      orders,
		Dispatcher:  dispatcher,
		Queue:       queue,
		Worker:      worker,
		Idempotency: idempotencyRepo,
		Metrics:     m,
		Server:      server,
		Producer:    producer,

		closeStorage: closeStorage,
		logger:       logger,
	}, nil
}

// Close освобождает внешние подключения.
func (d *Dependencies) Close() {
	closeKafka(d.Producer, d.logger)
	if d.closeStorage != nil {
		d.closeStorage()
	}
}
