package domain

// BookRef — read-only ссылка на книгу из внешнего каталога.
// Цена хранится в минимальных денежных единицах (центы/копейки).
type BookRef struct {
	// BookID — внешний идентификатор книги в каталоге.
	BookID string `json:"book_id"`
	// VariationID — идентификатор вариации (издание/формат); пустая строка означает базовую книгу.
	VariationID string `json:"variation_id,omitempty"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	// PriceMinor — актуальная цена каталога за единицу.
	PriceMinor int64 `json:"price_minor"`
}

// Key возвращает составной идентификатор позиции (bookId, variationId).
func (b BookRef) Key() ItemKey {
	return ItemKey{BookID: b.BookID, VariationID: b.VariationID}
}

// ItemKey — составной ключ позиции корзины: (bookId, variationId).
// Две позиции с одинаковым ключом всегда сливаются в одну.
type ItemKey struct {
	BookID      string `json:"book_id"`
	VariationID string `json:"variation_id,omitempty"`
}

// String возвращает каноничную строковую форму ключа для логов и wire-форматов.
func (k ItemKey) String() string {
	if k.VariationID == "" {
		return k.BookID
	}
	return k.BookID + ":" + k.VariationID
}

// IsZero проверяет, что ключ не заполнен.
func (k ItemKey) IsZero() bool {
	return k.BookID == ""
}
