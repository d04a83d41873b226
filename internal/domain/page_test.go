package domain_test

import (
	"math"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestNewPageNormalizes(t *testing.T) {
	cases := []struct {
		number, size int
		want         domain.Page
	}{
		{number: 0, size: 5, want: domain.Page{Number: 1, Size: 5}},
		{number: 2, size: -1, want: domain.Page{Number: 2, Size: domain.DefaultPageSize}},
		{number: 3, size: 1000, want: domain.Page{Number: 3, Size: domain.MaxPageSize}},
		{number: 1, size: 0, want: domain.Page{Number: 1, Size: 0}},
	}
	for _, tc := range cases {
		if got := domain.NewPage(tc.number, tc.size); got != tc.want {
			t.Fatalf("NewPage(%d, %d) = %+v, want %+v", tc.number, tc.size, got, tc.want)
		}
	}
}

func TestPageOffsetAndTotalPages(t *testing.T) {
	page := domain.NewPage(2, 5)
	if page.Offset() != 5 {
		t.Fatalf("expected offset 5, got %d", page.Offset())
	}
	if got := page.TotalPages(7); got != 2 {
		t.Fatalf("expected 2 pages for 7 records, got %d", got)
	}
	if got := page.TotalPages(0); got != 0 {
		t.Fatalf("expected 0 pages for empty set, got %d", got)
	}

	all := domain.NewPage(4, 0)
	if all.Offset() != 0 || all.TotalPages(7) != 1 {
		t.Fatalf("unpaginated page must cover everything, got offset=%d pages=%d", all.Offset(), all.TotalPages(7))
	}
}

func TestPageOffsetSaturates(t *testing.T) {
	page := domain.NewPage(math.MaxInt, 10)
	if got := page.Offset(); got != domain.MaxOffset {
		t.Fatalf("expected saturated offset %d, got %d", domain.MaxOffset, got)
	}

	page = domain.NewPage(math.MaxInt32/domain.MaxPageSize+2, domain.MaxPageSize)
	if got := page.Offset(); got < 0 || got > domain.MaxOffset {
		t.Fatalf("offset out of range: %d", got)
	}

	page = domain.NewPage(3, 10)
	if got := page.Offset(); got != 20 {
		t.Fatalf("regular offset must not be clamped, got %d", got)
	}
}
