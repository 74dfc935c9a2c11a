package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

// ordersKey — ключ персистентного списка заказов; единственный источник правды.
const ordersKey = "orders"

// CartSource — минимальный контракт движка корзины, нужный заказам:
// прочитать выбранные позиции и вычистить ровно оформленные identity.
type CartSource interface {
	SelectedItems() []domain.CartItem
	RemoveItems(ctx context.Context, keys []domain.ItemKey) (domain.Cart, error)
}

// CreateOrderInput — параметры оформления заказа.
type CreateOrderInput struct {
	ShippingAddress string
	PaymentMethod   domain.PaymentMethod
	Notes           string
}

// Engine владеет персистентным списком заказов. In-memory список — кэш
// над KV-хранилищем; мутации сериализуются мьютексом, поэтому два
// конкурентных перехода статуса одного заказа невозможны.
type Engine struct {
	mu         sync.Mutex
	kv         domain.KVStore
	cart       CartSource
	users      domain.CurrentUserProvider
	catalog    domain.Catalog
	timeline   domain.TimelineRepository
	dispatcher domain.EventDispatcher
	metrics    *metrics.StorefrontMetrics
	logger     *log.Entry

	orders []domain.Order
	loaded bool
}

// Options задаёт необязательные зависимости движка заказов.
type Options struct {
	Catalog    domain.Catalog
	Timeline   domain.TimelineRepository
	Dispatcher domain.EventDispatcher
	Metrics    *metrics.StorefrontMetrics
	Logger     *log.Entry
}

// Option настраивает Engine.
type Option func(*Options)

// WithCatalog задаёт каталог для списания остатков и low-stock событий.
func WithCatalog(catalog domain.Catalog) Option {
	return func(opts *Options) { opts.Catalog = catalog }
}

// WithTimeline задаёт хранилище истории переходов статусов.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(opts *Options) { opts.Timeline = timeline }
}

// WithDispatcher задаёт диспетчер уведомлений.
func WithDispatcher(dispatcher domain.EventDispatcher) Option {
	return func(opts *Options) { opts.Dispatcher = dispatcher }
}

// WithMetrics задаёт метрики заказов.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// NewEngine создаёт движок заказов.
func NewEngine(kv domain.KVStore, cart CartSource, users domain.CurrentUserProvider, options ...Option) *Engine {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-engine")
	}

	return &Engine{
		kv:         kv,
		cart:       cart,
		users:      users,
		catalog:    opts.Catalog,
		timeline:   opts.Timeline,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// CreateOrder превращает выбранные позиции корзины в неизменяемый заказ.
// Последовательность «сохранить заказ → вычистить корзину → отправить
// события» выполняется как одна логическая транзакция: при сбое
// персистентности корзина не меняется и события не отправляются.
func (e *Engine) CreateOrder(ctx context.Context, input CreateOrderInput) (domain.Order, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return domain.Order{}, err
	}

	selected := e.cart.SelectedItems()
	if len(selected) == 0 {
		return domain.Order{}, domain.ErrEmptySelection
	}

	user := e.users.Current()
	now := time.Now().UTC()

	// Глубокий снимок позиций: заказ неизменяем, дальнейшие мутации
	// корзины или каталога его не затрагивают.
	items := make([]domain.OrderItem, 0, len(selected))
	keys := make([]domain.ItemKey, 0, len(selected))
	var amount int64
	for _, item := range selected {
		items = append(items, domain.OrderItem{
			Key:        item.Key,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
			Book:       item.Book,
			CreatedAt:  now,
		})
		keys = append(keys, item.Key)
		amount += item.SubtotalMinor()
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      user.ID,
		Items:           items,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		AmountMinor:     amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		return domain.Order{}, fmt.Errorf("order invariants violated: %v", errs)
	}

	prev := e.orders
	next := e.cloneOrders()
	next = append(next, order)

	if err := e.persist(ctx, next); err != nil {
		// Заказ не сохранён: корзина остаётся нетронутой, событий нет.
		return domain.Order{}, err
	}

	if _, err := e.cart.RemoveItems(ctx, keys); err != nil {
		// Откатываем уже записанный заказ, чтобы не разойтись с корзиной.
		if rollbackErr := e.persist(ctx, prev); rollbackErr != nil {
			e.logger.WithError(rollbackErr).WithField("order_id", order.ID).
				Error("rollback after cart prune failure also failed")
		}
		return domain.Order{}, wrapPersistence(err, "prune ordered items from cart")
	}

	e.orders = next

	e.appendTimeline(domain.TimelineEvent{
		OrderID:  order.ID,
		To:       domain.OrderStatusPending,
		Occurred: now,
	})

	events := []domain.Event{placedEvent(order, user)}
	if !user.IsStaff() {
		events = append(events, staffEvent(order, user))
	}
	if e.catalog != nil {
		events = append(events, e.catalog.DecrementStock(order.Items)...)
	}
	e.dispatch(events...)

	if e.metrics != nil {
		e.metrics.RecordOrderPlaced()
		e.metrics.RecordCheckoutDuration(time.Since(start))
	}

	e.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"amount_minor": order.AmountMinor,
		"items":        len(order.Items),
	}).Info("order placed")

	return order.Clone(), nil
}

// UpdateOrderStatus выполняет переход статуса по графу жизненного цикла.
func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus) (domain.Order, error) {
	if !newStatus.Valid() {
		return domain.Order{}, domain.ErrInvalidStatusTransition
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return domain.Order{}, err
	}

	idx := e.findOrder(orderID)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	current := e.orders[idx].Status
	if !domain.CanTransition(current, newStatus) {
		return domain.Order{}, domain.ErrInvalidStatusTransition
	}

	next := e.cloneOrders()
	now := time.Now().UTC()
	next[idx].Status = newStatus
	next[idx].UpdatedAt = now

	if err := e.persist(ctx, next); err != nil {
		// Таймаут или сбой записи: статус не продвигается оптимистично.
		return domain.Order{}, err
	}
	e.orders = next

	e.appendTimeline(domain.TimelineEvent{
		OrderID:  orderID,
		From:     current,
		To:       newStatus,
		Occurred: now,
	})

	// Уведомления отправляются только на входе в significant-статусы.
	switch newStatus {
	case domain.OrderStatusProcessing:
		e.dispatch(domain.NewOrderEvent(domain.EventTypeOrderConfirmed, orderID, next[idx].CustomerID))
	case domain.OrderStatusShipped:
		e.dispatch(domain.NewOrderEvent(domain.EventTypeOrderShipped, orderID, next[idx].CustomerID))
	case domain.OrderStatusDelivered:
		e.dispatch(domain.NewOrderEvent(domain.EventTypeOrderDelivered, orderID, next[idx].CustomerID))
	}

	if e.metrics != nil {
		e.metrics.RecordStatusTransition(string(newStatus), newStatus.IsTerminal())
	}

	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     current,
		"to":       newStatus,
	}).Info("order status updated")

	return next[idx].Clone(), nil
}

// CancelOrder отменяет заказ с обязательной причиной. Допустимо только
// из pending/processing; из терминальных и shipped — ErrCancellationNotAllowed.
func (e *Engine) CancelOrder(ctx context.Context, orderID, reason string) (domain.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.Order{}, domain.ErrCancelReasonRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return domain.Order{}, err
	}

	idx := e.findOrder(orderID)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	current := e.orders[idx].Status
	if !current.CanCancel() {
		return domain.Order{}, domain.ErrCancellationNotAllowed
	}

	next := e.cloneOrders()
	now := time.Now().UTC()
	next[idx].Status = domain.OrderStatusCanceled
	next[idx].CancelReason = reason
	next[idx].UpdatedAt = now

	if err := e.persist(ctx, next); err != nil {
		return domain.Order{}, err
	}
	e.orders = next

	e.appendTimeline(domain.TimelineEvent{
		OrderID:  orderID,
		From:     current,
		To:       domain.OrderStatusCanceled,
		Reason:   reason,
		Occurred: now,
	})
	e.dispatch(domain.NewOrderEvent(domain.EventTypeOrderCanceled, orderID, next[idx].CustomerID))

	if e.metrics != nil {
		e.metrics.RecordOrderCanceled()
	}

	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"reason":   reason,
	}).Info("order canceled")

	return next[idx].Clone(), nil
}

// UpdatePaymentStatus записывает статус оплаты. Статус оплаты намеренно
// не связан со статусом доставки (см. DESIGN.md).
func (e *Engine) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidPaymentStatus
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return domain.Order{}, err
	}

	idx := e.findOrder(orderID)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	next := e.cloneOrders()
	next[idx].PaymentStatus = status
	next[idx].UpdatedAt = time.Now().UTC()

	if err := e.persist(ctx, next); err != nil {
		return domain.Order{}, err
	}
	e.orders = next

	return next[idx].Clone(), nil
}

// GetOrderByID возвращает копию заказа или ErrOrderNotFound.
func (e *Engine) GetOrderByID(ctx context.Context, orderID string) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return domain.Order{}, err
	}

	idx := e.findOrder(orderID)
	if idx < 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return e.orders[idx].Clone(), nil
}

// GetUserOrders возвращает заказы пользователя, свежие первыми.
func (e *Engine) GetUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return e.filterOrders(ctx, func(o domain.Order) bool {
		return o.CustomerID == userID
	})
}

// GetOrdersByStatus возвращает заказы в заданном статусе, свежие первыми.
func (e *Engine) GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return e.filterOrders(ctx, func(o domain.Order) bool {
		return o.Status == status
	})
}

// Timeline возвращает историю переходов статусов заказа.
func (e *Engine) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := e.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	if e.timeline == nil {
		return nil, nil
	}
	return e.timeline.List(orderID)
}

// Reload сбрасывает кэш и перечитывает список из источника правды.
// Вызывается при смене пользователя сессии.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loaded = false
	e.orders = nil
	return e.ensureLoaded(ctx)
}

func (e *Engine) filterOrders(ctx context.Context, keep func(domain.Order) bool) ([]domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0)
	for i := range e.orders {
		if keep(e.orders[i]) {
			result = append(result, e.orders[i].Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// ensureLoaded лениво загружает список заказов из KV-хранилища.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	if e.loaded {
		return nil
	}

	raw, err := e.kv.Get(ctx, ordersKey)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			e.orders = nil
			e.loaded = true
			return nil
		}
		return wrapPersistence(err, "load orders")
	}

	var orders []domain.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return fmt.Errorf("unmarshal orders: %w", err)
	}
	e.orders = orders
	e.loaded = true
	return nil
}

func (e *Engine) persist(ctx context.Context, orders []domain.Order) error {
	raw, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}
	if err := e.kv.Set(ctx, ordersKey, raw); err != nil {
		e.logger.WithError(err).Warn("orders persist failed")
		return wrapPersistence(err, "save orders")
	}
	return nil
}

func (e *Engine) findOrder(orderID string) int {
	for i := range e.orders {
		if e.orders[i].ID == orderID {
			return i
		}
	}
	return -1
}

func (e *Engine) cloneOrders() []domain.Order {
	next := make([]domain.Order, 0, len(e.orders)+1)
	for i := range e.orders {
		next = append(next, e.orders[i].Clone())
	}
	return next
}

func (e *Engine) appendTimeline(event domain.TimelineEvent) {
	if e.timeline == nil {
		return
	}
	if err := e.timeline.Append(event); err != nil {
		e.logger.WithError(err).WithField("order_id", event.OrderID).Warn("timeline append failed")
	}
}

// dispatch пересылает события диспетчеру. Fire-and-forget: результат
// доставки не влияет на исход операции.
func (e *Engine) dispatch(events ...domain.Event) {
	if e.dispatcher == nil || len(events) == 0 {
		return
	}
	e.dispatcher.Dispatch(events...)
}

func placedEvent(order domain.Order, user domain.User) domain.Event {
	event := domain.NewOrderEvent(domain.EventTypeOrderPlaced, order.ID, order.CustomerID)
	event.CustomerName = user.Name
	return event
}

func staffEvent(order domain.Order, user domain.User) domain.Event {
	event := domain.NewOrderEvent(domain.EventTypeNewOrderForStaff, order.ID, "")
	event.CustomerName = user.Name
	return event
}

// wrapPersistence приводит ошибку хранилища к ErrPersistence, не дублируя обёртку.
func wrapPersistence(err error, msg string) error {
	if domain.IsPersistence(err) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %v", msg, domain.ErrPersistence, err)
}
