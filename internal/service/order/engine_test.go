package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/cart"
	"github.com/vladislavdragonenkov/bookstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/bookstore/internal/service/identity"
	"github.com/vladislavdragonenkov/bookstore/internal/service/order"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func bookA() domain.BookRef {
	return domain.BookRef{BookID: "book-1", Title: "Book A", Author: "Author A", PriceMinor: 1299}
}

func bookB() domain.BookRef {
	return domain.BookRef{BookID: "book-2", VariationID: "hardcover", Title: "Book B", Author: "Author B", PriceMinor: 1999}
}

// captureDispatcher накапливает отправленные события.
type captureDispatcher struct {
	events []domain.Event
}

func (d *captureDispatcher) Dispatch(events ...domain.Event) {
	d.events = append(d.events, events...)
}

func (d *captureDispatcher) byType(eventType domain.EventType) []domain.Event {
	var matched []domain.Event
	for _, event := range d.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type fixture struct {
	kv         domain.KVStore
	cart       *cart.Engine
	users      *identity.Static
	dispatcher *captureDispatcher
	timeline   domain.TimelineRepository
	engine     *order.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kv := memory.NewKVStore()
	cartEngine := cart.NewEngine(kv, loggerForTests())
	users := identity.NewStatic()
	users.Set(domain.User{ID: "cust-1", Name: "Анна", Role: domain.UserRoleCustomer})
	dispatcher := &captureDispatcher{}
	timeline := memory.NewTimelineRepository()

	engine := order.NewEngine(kv, cartEngine, users,
		order.WithDispatcher(dispatcher),
		order.WithTimeline(timeline),
		order.WithLogger(loggerForTests()),
	)

	return &fixture{
		kv:         kv,
		cart:       cartEngine,
		users:      users,
		dispatcher: dispatcher,
		timeline:   timeline,
		engine:     engine,
	}
}

// fillCart кладёт в корзину 2 x Book A и 1 x Book B (hardcover); всё выбрано.
func fillCart(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, bookA(), 2)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, bookB(), 1)
	require.NoError(t, err)
}

func TestCreateOrder_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{
		ShippingAddress: "Москва, ул. Пушкина, 1",
		PaymentMethod:   domain.PaymentMethodCard,
	})
	require.NoError(t, err)

	// 2*1299 + 1*1999 = 4597.
	assert.Equal(t, int64(4597), placed.AmountMinor)
	assert.Equal(t, domain.OrderStatusPending, placed.Status)
	assert.Equal(t, domain.PaymentStatusPending, placed.PaymentStatus)
	assert.Equal(t, "cust-1", placed.CustomerID)
	assert.Len(t, placed.Items, 2)
	assert.NotEmpty(t, placed.ID)

	// Оформленные позиции вычищены из корзины.
	assert.Empty(t, f.cart.Cart().Items)

	// Событие order.placed отправлено ровно один раз, плюс уведомление персонала.
	require.Len(t, f.dispatcher.byType(domain.EventTypeOrderPlaced), 1)
	require.Len(t, f.dispatcher.byType(domain.EventTypeNewOrderForStaff), 1)
	assert.Equal(t, "Анна", f.dispatcher.byType(domain.EventTypeOrderPlaced)[0].CustomerName)

	// Заказ читается обратно из хранилища.
	loaded, err := f.engine.GetOrderByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, loaded.ID)
	assert.Equal(t, placed.AmountMinor, loaded.AmountMinor)
}

func TestCreateOrder_OnlySelectedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	// Снимаем выделение с Book B: заказ должен включить только Book A.
	_, err := f.cart.ToggleSelection(ctx, bookB().Key())
	require.NoError(t, err)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	require.Len(t, placed.Items, 1)
	assert.Equal(t, bookA().Key(), placed.Items[0].Key)
	assert.Equal(t, int64(2598), placed.AmountMinor)

	// Невыбранная позиция остаётся в корзине.
	state := f.cart.Cart()
	require.Len(t, state.Items, 1)
	assert.Equal(t, bookB().Key(), state.Items[0].Key)
}

func TestCreateOrder_EmptySelection(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateOrder(context.Background(), order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.ErrorIs(t, err, domain.ErrEmptySelection)
	assert.Empty(t, f.dispatcher.events)
}

func TestCreateOrder_ImmutableAfterCartMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	// Дальнейшие мутации корзины не затрагивают снимок заказа.
	_, err = f.cart.AddItem(ctx, bookA(), 5)
	require.NoError(t, err)

	loaded, err := f.engine.GetOrderByID(ctx, placed.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, int64(4597), loaded.AmountMinor)
}

func TestCreateOrder_StaffDoesNotNotifyStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.Set(domain.User{ID: "staff-1", Name: "Борис", Role: domain.UserRoleStaff})
	fillCart(t, f)

	_, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	assert.Len(t, f.dispatcher.byType(domain.EventTypeOrderPlaced), 1)
	assert.Empty(t, f.dispatcher.byType(domain.EventTypeNewOrderForStaff))
}

func TestCreateOrder_LowStockEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shop := catalog.NewService(3, loggerForTests())
	shop.Seed(
		catalog.Book{Ref: bookA(), Stock: 4},
		catalog.Book{Ref: bookB(), Stock: 10},
	)
	f.engine = order.NewEngine(f.kv, f.cart, f.users,
		order.WithDispatcher(f.dispatcher),
		order.WithCatalog(shop),
		order.WithLogger(loggerForTests()),
	)
	fillCart(t, f)

	_, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	// Book A: 4 - 2 = 2 <= порога 3, событие low-stock; Book B остаётся выше порога.
	lowStock := f.dispatcher.byType(domain.EventTypeLowStock)
	require.Len(t, lowStock, 1)
	assert.Equal(t, "book-1", lowStock[0].BookID)
	assert.Equal(t, int32(2), shop.Stock(bookA().Key()))
}

// failingKV пропускает первые allowed записей, затем отвечает ошибкой.
type failingKV struct {
	domain.KVStore
	allowed int
	sets    int
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.sets > f.allowed {
		return domain.ErrPersistence
	}
	return f.KVStore.Set(ctx, key, value)
}

func TestCreateOrder_PersistFailureLeavesCartIntact(t *testing.T) {
	kv := memory.NewKVStore()
	cartEngine := cart.NewEngine(kv, loggerForTests())
	users := identity.NewStatic()
	users.Set(domain.User{ID: "cust-1", Name: "Анна", Role: domain.UserRoleCustomer})
	dispatcher := &captureDispatcher{}
	ctx := context.Background()

	_, err := cartEngine.AddItem(ctx, bookA(), 2)
	require.NoError(t, err)

	// Первая запись (сама корзина при AddItem уже прошла) — отказ на записи заказов.
	broken := &failingKV{KVStore: kv, allowed: 1}
	engine := order.NewEngine(broken, cartEngine, users,
		order.WithDispatcher(dispatcher),
		order.WithLogger(loggerForTests()),
	)

	_, err = engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.ErrorIs(t, err, domain.ErrPersistence)

	// Корзина не изменилась, события не отправлены, заказов нет.
	assert.Len(t, cartEngine.Cart().Items, 1)
	assert.Empty(t, dispatcher.events)

	orders, err := engine.GetUserOrders(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpdateOrderStatus_FullWalk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		updated, err := f.engine.UpdateOrderStatus(ctx, placed.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	assert.Len(t, f.dispatcher.byType(domain.EventTypeOrderConfirmed), 1)
	assert.Len(t, f.dispatcher.byType(domain.EventTypeOrderShipped), 1)
	assert.Len(t, f.dispatcher.byType(domain.EventTypeOrderDelivered), 1)

	// История переходов: pending -> processing -> shipped -> delivered.
	timeline, err := f.engine.Timeline(ctx, placed.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 4)
	assert.Equal(t, domain.OrderStatusPending, timeline[0].To)
	assert.Equal(t, domain.OrderStatusDelivered, timeline[3].To)
}

func TestUpdateOrderStatus_IllegalTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	// pending -> delivered запрещён, промежуточные статусы обязательны.
	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusDelivered)
	require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	// Возврат назад запрещён.
	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusPending)
	require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, "teleported")
	require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.UpdateOrderStatus(context.Background(), "missing", domain.OrderStatusProcessing)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCancelOrder_RequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)
	f.dispatcher.events = nil

	_, err = f.engine.CancelOrder(ctx, placed.ID, "   ")
	require.ErrorIs(t, err, domain.ErrCancelReasonRequired)

	// Статус не изменился, событий нет.
	loaded, err := f.engine.GetOrderByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, loaded.Status)
	assert.Empty(t, f.dispatcher.events)
}

func TestCancelOrder_FromPendingAndProcessing(t *testing.T) {
	for _, walk := range []struct {
		name     string
		statuses []domain.OrderStatus
	}{
		{name: "from pending", statuses: nil},
		{name: "from processing", statuses: []domain.OrderStatus{domain.OrderStatusProcessing}},
	} {
		t.Run(walk.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			fillCart(t, f)

			placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
			require.NoError(t, err)
			for _, status := range walk.statuses {
				_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, status)
				require.NoError(t, err)
			}

			canceled, err := f.engine.CancelOrder(ctx, placed.ID, "передумал")
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusCanceled, canceled.Status)
			assert.Equal(t, "передумал", canceled.CancelReason)
			assert.Len(t, f.dispatcher.byType(domain.EventTypeOrderCanceled), 1)
		})
	}
}

func TestCancelOrder_ForbiddenAfterShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)
	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	_, err = f.engine.CancelOrder(ctx, placed.ID, "поздно")
	require.ErrorIs(t, err, domain.ErrCancellationNotAllowed)

	// Повторная отмена уже отменённого заказа тоже запрещена.
	_, err = f.engine.UpdateOrderStatus(ctx, placed.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	_, err = f.engine.CancelOrder(ctx, placed.ID, "поздно")
	require.ErrorIs(t, err, domain.ErrCancellationNotAllowed)
}

func TestUpdatePaymentStatus_IndependentOfDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	updated, err := f.engine.UpdatePaymentStatus(ctx, placed.ID, domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, updated.Status)

	_, err = f.engine.UpdatePaymentStatus(ctx, placed.ID, "golden")
	require.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)
}

func TestGetUserOrders_SortedNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		fillCart(t, f)
		placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
		require.NoError(t, err)
		ids = append(ids, placed.ID)
		time.Sleep(2 * time.Millisecond)
	}

	orders, err := f.engine.GetUserOrders(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, ids[2], orders[0].ID)
	assert.Equal(t, ids[0], orders[2].ID)

	// Чужой пользователь заказов не видит.
	other, err := f.engine.GetUserOrders(ctx, "cust-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGetOrdersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fillCart(t, f)
	first, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)
	fillCart(t, f)
	_, err = f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	_, err = f.engine.UpdateOrderStatus(ctx, first.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)

	pending, err := f.engine.GetOrdersByStatus(ctx, domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	processing, err := f.engine.GetOrdersByStatus(ctx, domain.OrderStatusProcessing)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, first.ID, processing[0].ID)
}

func TestReload_PicksUpExternalChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fillCart(t, f)

	placed, err := f.engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.NoError(t, err)

	// Второй движок над тем же хранилищем видит заказ после Reload.
	second := order.NewEngine(f.kv, f.cart, f.users, order.WithLogger(loggerForTests()))
	require.NoError(t, second.Reload(ctx))

	loaded, err := second.GetOrderByID(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.AmountMinor, loaded.AmountMinor)
}

func TestCreateOrder_CartPruneFailureRollsBack(t *testing.T) {
	kv := memory.NewKVStore()
	users := identity.NewStatic()
	users.Set(domain.User{ID: "cust-1", Name: "Анна", Role: domain.UserRoleCustomer})
	dispatcher := &captureDispatcher{}
	ctx := context.Background()

	source := &stubCartSource{items: []domain.CartItem{{
		Key:        bookA().Key(),
		Qty:        1,
		PriceMinor: bookA().PriceMinor,
		Book:       bookA(),
	}}}
	source.removeErr = errors.New("cart storage down")

	engine := order.NewEngine(kv, source, users,
		order.WithDispatcher(dispatcher),
		order.WithLogger(loggerForTests()),
	)

	_, err := engine.CreateOrder(ctx, order.CreateOrderInput{PaymentMethod: domain.PaymentMethodCard})
	require.ErrorIs(t, err, domain.ErrPersistence)

	// Откат: записанный заказ удалён из источника правды, событий нет.
	orders, err := engine.GetUserOrders(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, dispatcher.events)
}

type stubCartSource struct {
	items     []domain.CartItem
	removeErr error
}

func (s *stubCartSource) SelectedItems() []domain.CartItem {
	return s.items
}

func (s *stubCartSource) RemoveItems(ctx context.Context, keys []domain.ItemKey) (domain.Cart, error) {
	if s.removeErr != nil {
		return domain.Cart{}, s.removeErr
	}
	return domain.Cart{}, nil
}
