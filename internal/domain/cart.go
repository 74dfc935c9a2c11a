package domain

import "time"

// CartItem представляет одну позицию корзины.
type CartItem struct {
	// Key — составной идентификатор (bookId, variationId); в корзине уникален.
	Key ItemKey `json:"key"`
	// Qty — количество единиц, всегда >= 1.
	Qty int32 `json:"qty"`
	// PriceMinor — снимок цены на момент первого добавления.
	// Последующие изменения цены каталога на него не влияют.
	PriceMinor int64 `json:"price_minor"`
	// Book — снимок карточки книги для отображения.
	Book BookRef `json:"book"`
	// AddedAt фиксирует момент первого добавления позиции.
	AddedAt time.Time `json:"added_at"`
}

// SubtotalMinor возвращает стоимость позиции: qty * price.
func (i CartItem) SubtotalMinor() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Cart агрегирует позиции покупателя и отмеченное для checkout подмножество.
type Cart struct {
	Items []CartItem `json:"items"`
	// Selected — подмножество идентификаторов Items, отмеченных для оформления.
	Selected  []ItemKey `json:"selected"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindItem возвращает индекс позиции с данным ключом или -1.
func (c *Cart) FindItem(key ItemKey) int {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return i
		}
	}
	return -1
}

// IsSelected проверяет, отмечена ли позиция для оформления.
func (c *Cart) IsSelected(key ItemKey) bool {
	for _, k := range c.Selected {
		if k == key {
			return true
		}
	}
	return false
}

// TotalMinor возвращает сумму по всем позициям корзины.
func (c *Cart) TotalMinor() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.SubtotalMinor()
	}
	return total
}

// SelectedTotalMinor возвращает сумму по отмеченным позициям.
func (c *Cart) SelectedTotalMinor() int64 {
	var total int64
	for _, item := range c.Items {
		if c.IsSelected(item.Key) {
			total += item.SubtotalMinor()
		}
	}
	return total
}

// ItemCount возвращает суммарное количество единиц по всем позициям (для бейджа корзины).
func (c *Cart) ItemCount() int32 {
	var count int32
	for _, item := range c.Items {
		count += item.Qty
	}
	return count
}

// SelectedCount возвращает суммарное количество единиц по отмеченным позициям.
func (c *Cart) SelectedCount() int32 {
	var count int32
	for _, item := range c.Items {
		if c.IsSelected(item.Key) {
			count += item.Qty
		}
	}
	return count
}

// SelectedItems возвращает копии отмеченных позиций в порядке их следования в корзине.
func (c *Cart) SelectedItems() []CartItem {
	result := make([]CartItem, 0, len(c.Selected))
	for _, item := range c.Items {
		if c.IsSelected(item.Key) {
			result = append(result, item)
		}
	}
	return result
}

// Normalize восстанавливает инвариант selected ⊆ identities(items).
// Применяется после каждой мутации и после загрузки снимка из хранилища.
func (c *Cart) Normalize() {
	if len(c.Selected) == 0 {
		return
	}
	kept := c.Selected[:0]
	for _, key := range c.Selected {
		if c.FindItem(key) >= 0 {
			kept = append(kept, key)
		}
	}
	c.Selected = kept
}

// Clone возвращает глубокую копию корзины.
func (c *Cart) Clone() Cart {
	clone := Cart{UpdatedAt: c.UpdatedAt}
	if c.Items != nil {
		clone.Items = make([]CartItem, len(c.Items))
		copy(clone.Items, c.Items)
	}
	if c.Selected != nil {
		clone.Selected = make([]ItemKey, len(c.Selected))
		copy(clone.Selected, c.Selected)
	}
	return clone
}

// Validate проверяет инварианты корзины и возвращает список замечаний.
func (c *Cart) Validate() []error {
	var errs []error

	seen := make(map[ItemKey]struct{}, len(c.Items))
	for _, item := range c.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if _, dup := seen[item.Key]; dup {
			errs = append(errs, ErrDuplicateCartItem)
		}
		seen[item.Key] = struct{}{}
	}

	for _, key := range c.Selected {
		if _, ok := seen[key]; !ok {
			errs = append(errs, ErrSelectionNotSubset)
		}
	}

	return errs
}
