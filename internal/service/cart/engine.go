package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

// Engine владеет корзиной текущей сессии и сохраняет полный снимок
// в KV-хранилище после каждой успешной мутации. Все операции
// сериализуются мьютексом: на сессию приходится один логический актор.
type Engine struct {
	mu      sync.Mutex
	kv      domain.KVStore
	logger  *log.Entry
	metrics *metrics.StorefrontMetrics

	userID string
	cart   domain.Cart
}

// NewEngine создаёт движок корзины для гостевой сессии.
func NewEngine(kv domain.KVStore, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.WithField("component", "cart-engine")
	}
	return &Engine{
		kv:     kv,
		logger: logger,
		userID: domain.GuestUserID,
	}
}

// NewEngineWithMetrics создаёт движок корзины с метриками мутаций.
func NewEngineWithMetrics(kv domain.KVStore, m *metrics.StorefrontMetrics, logger *log.Entry) *Engine {
	engine := NewEngine(kv, logger)
	engine.metrics = m
	return engine
}

// CartKey возвращает ключ снимка корзины для пользователя.
func CartKey(userID string) string {
	if userID == "" {
		userID = domain.GuestUserID
	}
	return "cart:" + userID
}

// SetUser переключает сессию на другого пользователя и загружает его снимок.
// Отсутствующий снимок инициализирует пустую корзину.
func (e *Engine) SetUser(ctx context.Context, userID string) error {
	if userID == "" {
		userID = domain.GuestUserID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	loaded, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	e.userID = userID
	e.cart = loaded
	return nil
}

// load читает снимок корзины пользователя из KV-хранилища.
func (e *Engine) load(ctx context.Context, userID string) (domain.Cart, error) {
	raw, err := e.kv.Get(ctx, CartKey(userID))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.Cart{}, nil
		}
		return domain.Cart{}, wrapPersistence(err, "load cart snapshot")
	}

	var cart domain.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		// Повреждённый снимок не должен ронять сессию: начинаем с пустой корзины.
		e.logger.WithError(err).WithField("user_id", userID).Warn("corrupted cart snapshot, resetting")
		return domain.Cart{}, nil
	}
	cart.Normalize()
	return cart, nil
}

// AddItem добавляет книгу в корзину. Повторное добавление той же
// identity сливается в существующую позицию; снимок цены при этом
// не обновляется — действует цена первого добавления.
func (e *Engine) AddItem(ctx context.Context, book domain.BookRef, qty int32) (domain.Cart, error) {
	if qty < 1 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cart.Clone()
	now := time.Now().UTC()
	if idx := next.FindItem(book.Key()); idx >= 0 {
		next.Items[idx].Qty += qty
	} else {
		next.Items = append(next.Items, domain.CartItem{
			Key:        book.Key(),
			Qty:        qty,
			PriceMinor: book.PriceMinor,
			Book:       book,
			AddedAt:    now,
		})
	}
	return e.commit(ctx, next, "add_item")
}

// UpdateQuantity задаёт количество позиции. Количество <= 0
// эквивалентно удалению позиции.
func (e *Engine) UpdateQuantity(ctx context.Context, key domain.ItemKey, qty int32) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.cart.FindItem(key)
	if idx < 0 {
		return domain.Cart{}, domain.ErrItemNotFound
	}

	next := e.cart.Clone()
	if qty <= 0 {
		next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
		next.Normalize()
		return e.commit(ctx, next, "remove_item")
	}
	next.Items[idx].Qty = qty
	return e.commit(ctx, next, "update_quantity")
}

// RemoveItem удаляет позицию и её отметку выбора. Удаление
// отсутствующей позиции — no-op, а не ошибка.
func (e *Engine) RemoveItem(ctx context.Context, key domain.ItemKey) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.cart.FindItem(key)
	if idx < 0 {
		return e.cart.Clone(), nil
	}

	next := e.cart.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	next.Normalize()
	return e.commit(ctx, next, "remove_item")
}

// RemoveItems удаляет ровно перечисленные позиции одной записью снимка.
// Используется движком заказов для вычищения оформленных позиций.
func (e *Engine) RemoveItems(ctx context.Context, keys []domain.ItemKey) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	drop := make(map[domain.ItemKey]struct{}, len(keys))
	for _, key := range keys {
		drop[key] = struct{}{}
	}

	next := e.cart.Clone()
	kept := next.Items[:0]
	for _, item := range next.Items {
		if _, ok := drop[item.Key]; !ok {
			kept = append(kept, item)
		}
	}
	next.Items = kept
	next.Normalize()
	return e.commit(ctx, next, "prune_ordered")
}

// Clear опустошает корзину и снимает все отметки выбора.
func (e *Engine) Clear(ctx context.Context) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.commit(ctx, domain.Cart{}, "clear")
}

// ToggleSelection переключает отметку выбора позиции. Отметка
// отсутствующей в корзине позиции игнорируется: selection — best-effort
// состояние UI, операция никогда не завершается ошибкой валидации.
func (e *Engine) ToggleSelection(ctx context.Context, key domain.ItemKey) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cart.FindItem(key) < 0 {
		return e.cart.Clone(), nil
	}

	next := e.cart.Clone()
	if next.IsSelected(key) {
		kept := next.Selected[:0]
		for _, k := range next.Selected {
			if k != key {
				kept = append(kept, k)
			}
		}
		next.Selected = kept
	} else {
		next.Selected = append(next.Selected, key)
	}
	return e.commit(ctx, next, "toggle_selection")
}

// SelectAll отмечает все текущие позиции корзины.
func (e *Engine) SelectAll(ctx context.Context) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cart.Clone()
	next.Selected = make([]domain.ItemKey, 0, len(next.Items))
	for _, item := range next.Items {
		next.Selected = append(next.Selected, item.Key)
	}
	return e.commit(ctx, next, "select_all")
}

// DeselectAll снимает все отметки выбора.
func (e *Engine) DeselectAll(ctx context.Context) (domain.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cart.Clone()
	next.Selected = nil
	return e.commit(ctx, next, "deselect_all")
}

// Cart возвращает копию текущей корзины.
func (e *Engine) Cart() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

// SelectedItems возвращает копии отмеченных позиций.
func (e *Engine) SelectedItems() []domain.CartItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.SelectedItems()
}

// TotalMinor возвращает сумму по всем позициям.
func (e *Engine) TotalMinor() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.TotalMinor()
}

// SelectedTotalMinor возвращает сумму по отмеченным позициям.
func (e *Engine) SelectedTotalMinor() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.SelectedTotalMinor()
}

// SelectedCount возвращает количество единиц в отмеченных позициях.
func (e *Engine) SelectedCount() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.SelectedCount()
}

// ItemCount возвращает суммарное количество единиц (бейдж корзины).
func (e *Engine) ItemCount() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.ItemCount()
}

// UserID возвращает пользователя текущей сессии корзины.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// commit сохраняет снимок и только после успешной записи подменяет
// in-memory состояние. При ошибке хранилища корзина не меняется.
func (e *Engine) commit(ctx context.Context, next domain.Cart, op string) (domain.Cart, error) {
	next.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(next)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	if err := e.kv.Set(ctx, CartKey(e.userID), raw); err != nil {
		e.logger.WithError(err).WithField("op", op).Warn("cart snapshot persist failed")
		return domain.Cart{}, wrapPersistence(err, "save cart snapshot")
	}

	e.cart = next
	if e.metrics != nil {
		e.metrics.RecordCartMutation(op)
	}
	return next.Clone(), nil
}

// wrapPersistence приводит ошибку хранилища к ErrPersistence, не дублируя обёртку.
func wrapPersistence(err error, msg string) error {
	if domain.IsPersistence(err) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %v", msg, domain.ErrPersistence, err)
}
