package domain

import "time"

// MaxQuantity ограничивает количество одной позиции. Значение помещается в INTEGER
// колонки cart_items и order_items.
const MaxQuantity = 10000

// ValidQuantity проверяет, что количество лежит в диапазоне [1, MaxQuantity].
func ValidQuantity(quantity int) bool {
	return quantity >= 1 && quantity <= MaxQuantity
}

// LineItem — пара {товар, количество} в корзине или заказе.
type LineItem struct {
	ProductID string
	Quantity  int
}

// Cart хранит изменяемую корзину пользователя до оформления заказа.
// На один товар приходится не более одной позиции.
type Cart struct {
	UserID    string
	Items     []LineItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Find возвращает индекс позиции товара или -1.
func (c *Cart) Find(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add увеличивает количество существующей позиции или добавляет новую.
// Если итог выходит за MaxQuantity, корзина не меняется и возвращается ErrQuantityInvalid.
func (c *Cart) Add(productID string, quantity int) error {
	if !ValidQuantity(quantity) {
		return ErrQuantityInvalid
	}
	if idx := c.Find(productID); idx >= 0 {
		if c.Items[idx].Quantity > MaxQuantity-quantity {
			return ErrQuantityInvalid
		}
		c.Items[idx].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, LineItem{ProductID: productID, Quantity: quantity})
	return nil
}

// SetQuantity задаёт количество позиции абсолютно. Возвращает ErrItemNotInCart, если позиции нет.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if !ValidQuantity(quantity) {
		return ErrQuantityInvalid
	}
	idx := c.Find(productID)
	if idx < 0 {
		return ErrItemNotInCart
	}
	c.Items[idx].Quantity = quantity
	return nil
}

// Remove убирает позицию товара; отсутствие позиции не является ошибкой.
func (c *Cart) Remove(productID string) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
}

// Clear очищает позиции, сама корзина сохраняется.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
}

// Clone возвращает копию корзины с независимым срезом позиций.
func (c Cart) Clone() Cart {
	c.Items = CloneLineItems(c.Items)
	return c
}

// CloneLineItems копирует срез позиций; nil превращается в пустой срез.
func CloneLineItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
