package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolvedLineItem содержит позицию с подтянутыми из каталога данными товара.
// Product == nil, если товар был удалён из каталога.
type ResolvedLineItem struct {
	ProductID string
	Product   *Product
	Quantity  int
	Subtotal  decimal.Decimal
}

// CartView — корзина для ответа клиенту.
type CartView struct {
	UserID      string
	Items       []ResolvedLineItem
	TotalAmount decimal.Decimal
	UpdatedAt   time.Time
}

// OrderView — заказ с позициями, разрешёнными по текущим ценам каталога.
type OrderView struct {
	Order
	User        *UserProfile
	Items       []ResolvedLineItem
	TotalAmount decimal.Decimal
}

// OrderPage описывает страницу заказов.
type OrderPage struct {
	Orders      []OrderView
	TotalPages  int
	CurrentPage int
	TotalCount  int
}

// ResolveLineItems подставляет товары из каталога и считает сумму по живым ценам.
func ResolveLineItems(items []LineItem, products map[string]Product) ([]ResolvedLineItem, decimal.Decimal) {
	resolved := make([]ResolvedLineItem, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		line := ResolvedLineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  decimal.Zero,
		}
		if product, ok := products[item.ProductID]; ok {
			p := product
			line.Product = &p
			line.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(line.Subtotal)
		}
		resolved = append(resolved, line)
	}
	return resolved, total
}
