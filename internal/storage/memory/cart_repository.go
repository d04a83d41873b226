package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory хранит корзины в памяти. Все мутации идут под одним мьютексом,
// поэтому параллельные AddItem не теряют инкременты.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

// NewCartRepository создаёт in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{carts: make(map[string]domain.Cart)}
}

func (r *cartRepositoryInMemory) Get(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

// AddItem лениво создаёт корзину и накапливает количество позиции.
func (r *cartRepositoryInMemory) AddItem(_ context.Context, userID, productID string, quantity int, now time.Time) (domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		cart = domain.Cart{UserID: userID, Items: []domain.LineItem{}, CreatedAt: now}
	}
	cart = cart.Clone()
	if err := cart.Add(productID, quantity); err != nil {
		return domain.Cart{}, err
	}
	cart.UpdatedAt = now
	r.carts[userID] = cart
	return cart.Clone(), nil
}

func (r *cartRepositoryInMemory) SetItemQuantity(_ context.Context, userID, productID string, quantity int, now time.Time) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	cart = cart.Clone()
	if err := cart.SetQuantity(productID, quantity); err != nil {
		return domain.Cart{}, err
	}
	cart.UpdatedAt = now
	r.carts[userID] = cart
	return cart.Clone(), nil
}

func (r *cartRepositoryInMemory) RemoveItem(_ context.Context, userID, productID string, now time.Time) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	cart = cart.Clone()
	cart.Remove(productID)
	cart.UpdatedAt = now
	r.carts[userID] = cart
	return cart.Clone(), nil
}

func (r *cartRepositoryInMemory) Clear(_ context.Context, userID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart.Clear()
	cart.UpdatedAt = now
	r.carts[userID] = cart
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
