package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics содержит метрики корзины и заказов.
type StorefrontMetrics struct {
	// Счётчики операций
	cartMutations     *prometheus.CounterVec
	ordersPlaced      prometheus.Counter
	ordersCanceled    prometheus.Counter
	statusTransitions *prometheus.CounterVec
	eventsDispatched  *prometheus.CounterVec

	// Гистограмма времени оформления заказа
	checkoutDuration prometheus.Histogram

	// Gauge для незавершённых заказов
	openOrders prometheus.Gauge
}

// NewStorefrontMetrics создаёт новый экземпляр метрик магазина.
func NewStorefrontMetrics() *StorefrontMetrics {
	return newStorefrontMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newStorefrontMetricsWithRegisterer(registerer prometheus.Registerer) *StorefrontMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorefrontMetrics{
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "bookstore_cart_mutations_total",
			Help: "Total number of cart mutations grouped by operation",
		}, []string{"op"}),
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bookstore_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bookstore_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "bookstore_order_status_transitions_total",
			Help: "Total number of order status transitions grouped by target status",
		}, []string{"to"}),
		eventsDispatched: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "bookstore_events_dispatched_total",
			Help: "Total number of notification events dispatched grouped by type and result",
		}, []string{"type", "result"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "bookstore_checkout_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		openOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "bookstore_open_orders",
			Help: "Number of orders in a non-terminal status",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCartMutation увеличивает счётчик мутаций корзины.
func (m *StorefrontMetrics) RecordCartMutation(op string) {
	m.cartMutations.WithLabelValues(op).Inc()
}

// RecordOrderPlaced увеличивает счётчики созданных и незавершённых заказов.
func (m *StorefrontMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
	m.openOrders.Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *StorefrontMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
	m.openOrders.Dec()
}

// RecordStatusTransition фиксирует переход статуса заказа.
func (m *StorefrontMetrics) RecordStatusTransition(to string, terminal bool) {
	m.statusTransitions.WithLabelValues(to).Inc()
	if terminal {
		m.openOrders.Dec()
	}
}

// RecordEventDispatched фиксирует результат доставки события.
func (m *StorefrontMetrics) RecordEventDispatched(eventType, result string) {
	m.eventsDispatched.WithLabelValues(eventType, result).Inc()
}

// RecordCheckoutDuration записывает время оформления заказа.
func (m *StorefrontMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}
