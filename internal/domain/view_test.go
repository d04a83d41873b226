package domain_test

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestResolveLineItemsUsesLivePrices(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "gone", Quantity: 1},
		{ProductID: "p2", Quantity: 3},
	}
	products := map[string]domain.Product{
		"p1": {ID: "p1", Name: "Mug", Price: decimal.RequireFromString("199.50")},
		"p2": {ID: "p2", Name: "Pen", Price: decimal.RequireFromString("10")},
	}

	resolved, total := domain.ResolveLineItems(items, products)

	if len(resolved) != 3 {
		t.Fatalf("expected 3 resolved items, got %d", len(resolved))
	}
	if resolved[1].Product != nil {
		t.Fatalf("deleted product must resolve to nil")
	}
	if !resolved[1].Subtotal.IsZero() {
		t.Fatalf("deleted product must not contribute to total")
	}
	if !resolved[0].Subtotal.Equal(decimal.RequireFromString("399")) {
		t.Fatalf("unexpected subtotal %s", resolved[0].Subtotal)
	}
	if !total.Equal(decimal.RequireFromString("429")) {
		t.Fatalf("unexpected total %s", total)
	}
}

func TestProductIDsDeduplicates(t *testing.T) {
	got := domain.ProductIDs(
		[]domain.LineItem{{ProductID: "a"}, {ProductID: "b"}},
		[]domain.LineItem{{ProductID: "b"}, {ProductID: "c"}},
	)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ProductIDs = %v, want %v", got, want)
	}
}
