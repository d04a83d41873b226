package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Catalog хранит товары и пользователей в памяти.
// Реализует ProductCatalog, UserDirectory и IdentityResolver для локального запуска и тестов.
// Токены хранятся только в виде хеша.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	users    map[string]domain.Identity
	tokens   map[string]string
}

// NewCatalog создаёт пустой каталог.
func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]domain.Product),
		users:    make(map[string]domain.Identity),
		tokens:   make(map[string]string),
	}
}

// PutProduct добавляет или заменяет товар.
func (c *Catalog) PutProduct(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

// DeleteProduct убирает товар из каталога. Позиции корзин и заказов с ним остаются.
func (c *Catalog) DeleteProduct(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

// PutUser регистрирует пользователя и привязывает к нему bearer-токен.
func (c *Catalog) PutUser(identity domain.Identity, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[identity.UserID] = identity
	if token != "" {
		c.tokens[domain.HashToken(token)] = identity.UserID
	}
}

// GetProducts реализует domain.ProductCatalog.
func (c *Catalog) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := c.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

// GetUsers реализует domain.UserDirectory.
func (c *Catalog) GetUsers(_ context.Context, ids []string) (map[string]domain.UserProfile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]domain.UserProfile, len(ids))
	for _, id := range ids {
		if user, ok := c.users[id]; ok {
			result[id] = domain.UserProfile{ID: user.UserID, Name: user.Name, Email: user.Email}
		}
	}
	return result, nil
}

// ResolveToken реализует domain.IdentityResolver.
func (c *Catalog) ResolveToken(_ context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	userID, ok := c.tokens[domain.HashToken(token)]
	if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	identity, ok := c.users[userID]
	if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return identity, nil
}

var (
	_ domain.ProductCatalog   = (*Catalog)(nil)
	_ domain.UserDirectory    = (*Catalog)(nil)
	_ domain.IdentityResolver = (*Catalog)(nil)
)
