// Package cart реализует менеджер корзины: изменяемую корзину одного пользователя до оформления заказа.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	opGet    = "get"
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
)

// Manager управляет корзинами. Идентичность участника передаётся явно в каждый вызов.
type Manager struct {
	repo    domain.CartRepository
	catalog domain.ProductCatalog
	logger  *log.Entry
	metrics *metrics.StorefrontMetrics
	now     func() time.Time
}

// Option настраивает Manager.
type Option func(*Manager)

// WithMetrics подключает бизнес-метрики.
func WithMetrics(m *metrics.StorefrontMetrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) {
		if now != nil {
			mgr.now = now
		}
	}
}

// NewManager создаёт менеджер корзины.
func NewManager(repo domain.CartRepository, catalog domain.ProductCatalog, logger *log.Entry, opts ...Option) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "cart-manager")
	}
	mgr := &Manager{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// GetCart возвращает корзину с подтянутыми товарами. Отсутствие корзины не ошибка:
// возвращается пустая корзина.
func (m *Manager) GetCart(ctx context.Context, identity domain.Identity) (domain.CartView, error) {
	cart, err := m.repo.Get(ctx, identity.UserID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.CartView{UserID: identity.UserID, Items: []domain.ResolvedLineItem{}}, nil
	}
	if err != nil {
		return domain.CartView{}, m.fail(opGet, identity, "", err)
	}
	return m.resolve(ctx, identity, cart)
}

// AddItem добавляет товар или увеличивает количество существующей позиции.
func (m *Manager) AddItem(ctx context.Context, identity domain.Identity, productID string, quantity int) (domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CartView{}, domain.ErrProductRequired
	}
	if !domain.ValidQuantity(quantity) {
		return domain.CartView{}, domain.ErrQuantityInvalid
	}

	cart, err := m.repo.AddItem(ctx, identity.UserID, productID, quantity, m.now())
	if err != nil {
		return domain.CartView{}, m.fail(opAdd, identity, productID, err)
	}
	m.metrics.RecordCartOperation(opAdd, nil)
	return m.resolve(ctx, identity, cart)
}

// UpdateItemQuantity задаёт количество абсолютно. Проверка quantity идёт до обращения к хранилищу.
func (m *Manager) UpdateItemQuantity(ctx context.Context, identity domain.Identity, productID string, quantity int) (domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	if !domain.ValidQuantity(quantity) {
		return domain.CartView{}, domain.ErrQuantityInvalid
	}

	cart, err := m.repo.SetItemQuantity(ctx, identity.UserID, productID, quantity, m.now())
	if err != nil {
		return domain.CartView{}, m.fail(opUpdate, identity, productID, err)
	}
	m.metrics.RecordCartOperation(opUpdate, nil)
	return m.resolve(ctx, identity, cart)
}

// RemoveItem убирает позицию. Отсутствующая позиция не ошибка, для отсутствующей корзины возвращается NotFound.
func (m *Manager) RemoveItem(ctx context.Context, identity domain.Identity, productID string) (domain.CartView, error) {
	productID = strings.TrimSpace(productID)
	cart, err := m.repo.RemoveItem(ctx, identity.UserID, productID, m.now())
	if err != nil {
		return domain.CartView{}, m.fail(opRemove, identity, productID, err)
	}
	m.metrics.RecordCartOperation(opRemove, nil)
	return m.resolve(ctx, identity, cart)
}

// ClearCart очищает позиции корзины.
func (m *Manager) ClearCart(ctx context.Context, identity domain.Identity) error {
	if err := m.repo.Clear(ctx, identity.UserID, m.now()); err != nil {
		return m.fail(opClear, identity, "", err)
	}
	m.metrics.RecordCartOperation(opClear, nil)
	return nil
}

func (m *Manager) resolve(ctx context.Context, identity domain.Identity, cart domain.Cart) (domain.CartView, error) {
	products, err := m.catalog.GetProducts(ctx, domain.ProductIDs(cart.Items))
	if err != nil {
		return domain.CartView{}, m.fail(opGet, identity, "", fmt.Errorf("resolve products: %w", err))
	}
	items, total := domain.ResolveLineItems(cart.Items, products)
	return domain.CartView{
		UserID:      cart.UserID,
		Items:       items,
		TotalAmount: total,
		UpdatedAt:   cart.UpdatedAt,
	}, nil
}

// fail логирует неожиданные ошибки хранилища; ожидаемые бизнес-ошибки возвращаются как есть.
func (m *Manager) fail(operation string, identity domain.Identity, productID string, err error) error {
	m.metrics.RecordCartOperation(operation, err)
	if domain.IsNotFound(err) || domain.IsInvalidInput(err) {
		return err
	}
	m.logger.WithError(err).WithFields(log.Fields{
		"operation":  operation,
		"user_id":    identity.UserID,
		"product_id": productID,
	}).Error("cart operation failed")
	return err
}
