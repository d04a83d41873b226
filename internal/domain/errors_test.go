package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{name: "no items", err: ErrNoItems, category: ErrInvalidInput},
		{name: "incomplete address", err: ErrIncompleteAddress, category: ErrInvalidInput},
		{name: "invalid payment", err: ErrInvalidPaymentMethod, category: ErrInvalidInput},
		{name: "quantity", err: ErrQuantityInvalid, category: ErrInvalidInput},
		{name: "cart not found", err: ErrCartNotFound, category: ErrNotFound},
		{name: "item not in cart", err: ErrItemNotInCart, category: ErrNotFound},
		{name: "order not found", err: ErrOrderNotFound, category: ErrNotFound},
		{name: "not cancellable", err: ErrOrderNotCancellable, category: ErrInvalidState},
		{name: "wrapped", err: fmt.Errorf("load: %w", ErrOrderNotFound), category: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.category) {
				t.Errorf("expected %v to belong to %v", tt.err, tt.category)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	if ErrNoItems.Error() != "no items" {
		t.Errorf("unexpected message: %q", ErrNoItems.Error())
	}
	if ErrOrderNotCancellable.Error() != "only pending orders can be cancelled" {
		t.Errorf("unexpected message: %q", ErrOrderNotCancellable.Error())
	}
}

func TestCategoryHelpers(t *testing.T) {
	if !IsInvalidInput(ErrIncompleteAddress) || IsInvalidInput(ErrOrderNotFound) {
		t.Error("IsInvalidInput mismatch")
	}
	if !IsNotFound(ErrCartNotFound) || IsNotFound(ErrNoItems) {
		t.Error("IsNotFound mismatch")
	}
	if !IsInvalidState(ErrOrderNotCancellable) || IsInvalidState(nil) {
		t.Error("IsInvalidState mismatch")
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "idempotency already exists", err: ErrIdempotencyKeyAlreadyExists, want: true},
		{name: "idempotency hash mismatch", err: ErrIdempotencyHashMismatch, want: true},
		{name: "wrapped idempotency conflict", err: errors.Join(ErrIdempotencyHashMismatch, errors.New("extra context")), want: true},
		{name: "non idempotency error", err: ErrOrderNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIdempotencyConflict(tt.err); got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
