package catalog

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const defaultLowStockThreshold = 3

// Book — карточка каталога с остатком на складе.
type Book struct {
	Ref   domain.BookRef
	Stock int32
}

// Service — in-memory каталог книг. Поиск и ранжирование вне ядра;
// движкам нужны только карточки и best-effort учёт остатков.
type Service struct {
	mu        sync.RWMutex
	books     map[domain.ItemKey]*Book
	threshold int32
	logger    *log.Entry
}

// NewService создаёт каталог с порогом low-stock уведомлений.
func NewService(threshold int32, logger *log.Entry) *Service {
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{
		books:     make(map[domain.ItemKey]*Book),
		threshold: threshold,
		logger:    logger,
	}
}

// Seed наполняет каталог начальными карточками без событий.
func (s *Service) Seed(books ...Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, book := range books {
		copied := book
		s.books[book.Ref.Key()] = &copied
	}
}

// AddBook добавляет новую книгу и возвращает событие для покупателей.
func (s *Service) AddBook(book Book) domain.Event {
	s.mu.Lock()
	copied := book
	s.books[book.Ref.Key()] = &copied
	s.mu.Unlock()

	return domain.Event{
		Type:      domain.EventTypeNewBookAdded,
		BookID:    book.Ref.BookID,
		Title:     book.Ref.Title,
		Timestamp: time.Now().UTC(),
	}
}

// GetBook возвращает карточку книги/вариации или ErrBookNotFound.
func (s *Service) GetBook(bookID, variationID string) (domain.BookRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[domain.ItemKey{BookID: bookID, VariationID: variationID}]
	if !ok {
		return domain.BookRef{}, domain.ErrBookNotFound
	}
	return book.Ref, nil
}

// Stock возвращает текущий остаток позиции; отсутствующая позиция — ноль.
func (s *Service) Stock(key domain.ItemKey) int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if book, ok := s.books[key]; ok {
		return book.Stock
	}
	return 0
}

// DecrementStock списывает остатки под заказ и возвращает low-stock
// события для позиций, пересёкших порог вниз. Недостаток остатка не
// блокирует заказ: склад здесь ведётся best-effort.
func (s *Service) DecrementStock(items []domain.OrderItem) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []domain.Event
	now := time.Now().UTC()
	for _, item := range items {
		book, ok := s.books[item.Key]
		if !ok {
			continue
		}
		before := book.Stock
		book.Stock -= item.Qty
		if book.Stock < 0 {
			s.logger.WithField("key", item.Key.String()).Warn("stock went negative")
			book.Stock = 0
		}
		if before > s.threshold && book.Stock <= s.threshold {
			events = append(events, domain.Event{
				Type:      domain.EventTypeLowStock,
				BookID:    book.Ref.BookID,
				Title:     book.Ref.Title,
				Timestamp: now,
			})
		}
	}
	return events
}

var _ domain.Catalog = (*Service)(nil)
