package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product содержит справочные данные товара из внешнего каталога.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Image string
}

// ProductCatalog — внешний каталог товаров, только чтение.
type ProductCatalog interface {
	// GetProducts возвращает найденные товары; удалённые товары в ответ не попадают.
	GetProducts(ctx context.Context, ids []string) (map[string]Product, error)
}

// ProductIDs собирает уникальные идентификаторы товаров в порядке первого появления.
func ProductIDs(items ...[]LineItem) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, group := range items {
		for _, item := range group {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
