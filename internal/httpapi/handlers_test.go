package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/notify"
	"github.com/vladislavdragonenkov/bookstore/internal/service/cart"
	"github.com/vladislavdragonenkov/bookstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/bookstore/internal/service/identity"
	"github.com/vladislavdragonenkov/bookstore/internal/service/order"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger.WithField("component", "test")
}

func setupServer(t *testing.T) *Server {
	t.Helper()

	kv := memory.NewKVStore()
	shop := catalog.NewService(3, loggerForTests())
	shop.Seed(
		catalog.Book{Ref: domain.BookRef{BookID: "book-1", Title: "Book A", Author: "Author A", PriceMinor: 1299}, Stock: 20},
		catalog.Book{Ref: domain.BookRef{BookID: "book-2", VariationID: "hardcover", Title: "Book B", Author: "Author B", PriceMinor: 1999}, Stock: 20},
	)

	users := identity.NewStatic()
	users.Set(domain.User{ID: "cust-1", Name: "Анна", Role: domain.UserRoleCustomer})

	carts := cart.NewEngine(kv, loggerForTests())
	require.NoError(t, carts.SetUser(context.Background(), "cust-1"))

	dispatcher := notify.NewDirect(notify.NewKVSink(kv), loggerForTests())
	orders := order.NewEngine(kv, carts, users,
		order.WithCatalog(shop),
		order.WithDispatcher(dispatcher),
		order.WithTimeline(memory.NewTimelineRepository()),
		order.WithLogger(loggerForTests()),
	)

	return NewServer(carts, orders, shop, users, dispatcher, memory.NewIdempotencyRepository(), loggerForTests())
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers ...map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, set := range headers {
		for k, v := range set {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestCartFlow(t *testing.T) {
	s := setupServer(t)

	// add
	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1", "qty": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-2", "variation_id": "hardcover", "qty": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// summary: 2*1299 + 1999 = 4597, всё выбрано по умолчанию
	w = doJSON(t, s, http.MethodGet, "/api/v1/cart/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary cartSummaryResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int32(3), summary.ItemCount)
	assert.Equal(t, int64(4597), summary.SelectedTotalMinor)

	// update qty
	w = doJSON(t, s, http.MethodPut, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1", "qty": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// toggle selection off
	w = doJSON(t, s, http.MethodPost, "/api/v1/cart/selection/toggle", map[string]any{
		"book_id": "book-2", "variation_id": "hardcover",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.Cart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Len(t, state.Items, 2)
	assert.Len(t, state.Selected, 1)

	// remove
	w = doJSON(t, s, http.MethodDelete, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// clear
	w = doJSON(t, s, http.MethodPost, "/api/v1/cart/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Empty(t, state.Items)
}

func TestAddCartItem_UnknownBook(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "ghost", "qty": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddCartItem_InvalidQuantity(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1", "qty": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderFlow(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1", "qty": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// create
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"shipping_address": "Москва", "payment_method": "card",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var placed domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))
	assert.Equal(t, int64(2598), placed.AmountMinor)

	// get
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+placed.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// list mine
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)

	// status walk
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+placed.ID+"/status", map[string]any{"status": "processing"})
	require.Equal(t, http.StatusOK, w.Code)

	// illegal transition
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+placed.ID+"/status", map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// payment status
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+placed.ID+"/payment-status", map[string]any{"status": "paid"})
	require.Equal(t, http.StatusOK, w.Code)

	// timeline
	w = doJSON(t, s, http.MethodGet, "/api/v1/orders/"+placed.ID+"/timeline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var timeline []domain.TimelineEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &timeline))
	assert.Len(t, timeline, 2)
}

func TestCreateOrder_EmptySelection(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"payment_method": "card",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrder_Idempotency(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1", "qty": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := map[string]any{"shipping_address": "Москва", "payment_method": "card"}
	headers := map[string]string{"Idempotency-Key": "key-1"}

	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusCreated, w.Code)
	var first domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// Повтор с тем же ключом и телом: тот же заказ, нового не создаётся.
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", body, headers)
	require.Equal(t, http.StatusCreated, w.Code)
	var second domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.ID, second.ID)

	w = doJSON(t, s, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)

	// Тот же ключ с другим телом конфликтует.
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{
		"shipping_address": "Питер", "payment_method": "card",
	}, headers)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelOrder(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1", "qty": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders", map[string]any{"payment_method": "card"})
	require.Equal(t, http.StatusCreated, w.Code)
	var placed domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))

	// без причины
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+placed.ID+"/cancel", map[string]any{"reason": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+placed.ID+"/cancel", map[string]any{"reason": "передумал"})
	require.Equal(t, http.StatusOK, w.Code)

	// повторная отмена запрещена
	w = doJSON(t, s, http.MethodPost, "/api/v1/orders/"+placed.ID+"/cancel", map[string]any{"reason": "ещё раз"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/admin/books", map[string]any{
		"book_id": "book-3", "title": "Book C", "author": "Author C", "price_minor": 2499, "stock": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Книга сразу доступна для добавления в корзину.
	w = doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-3", "qty": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/broadcast", map[string]any{
		"type": "promo", "message": "Скидки на классику",
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/admin/broadcast", map[string]any{
		"type": "unknown", "message": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionSwitch(t *testing.T) {
	s := setupServer(t)

	// Корзина первого пользователя.
	w := doJSON(t, s, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"book_id": "book-1", "qty": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Переключение на другого пользователя: корзина пустая.
	w = doJSON(t, s, http.MethodPost, "/api/v1/session", map[string]any{
		"user_id": "cust-2", "name": "Борис", "role": "customer",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state domain.Cart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Empty(t, state.Items)

	// Возврат к первому пользователю: корзина восстановлена.
	w = doJSON(t, s, http.MethodPost, "/api/v1/session", map[string]any{
		"user_id": "cust-1", "name": "Анна", "role": "customer",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Len(t, state.Items, 1)
	assert.Equal(t, int32(2), state.Items[0].Qty)

	// Логаут в гостевую сессию.
	w = doJSON(t, s, http.MethodPost, "/api/v1/session", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)
	var user domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, domain.GuestUserID, user.ID)
}
