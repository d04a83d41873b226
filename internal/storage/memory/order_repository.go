package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory реализует OrderRepository в памяти.
// Заказы лежат в порядке вставки, что даёт стабильный порядок при равном CreatedAt.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	order []string
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderAlreadyExists
	}
	r.items[order.ID] = order.Clone()
	r.order = append(r.order, order.ID)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *orderRepositoryInMemory) ListByUser(_ context.Context, userID string, page domain.Page) ([]domain.Order, int, error) {
	orders, total := r.list(page, func(o domain.Order) bool { return o.UserID == userID })
	return orders, total, nil
}

func (r *orderRepositoryInMemory) List(_ context.Context, page domain.Page) ([]domain.Order, int, error) {
	orders, total := r.list(page, func(domain.Order) bool { return true })
	return orders, total, nil
}

// UpdateStatus перезаписывает статус без проверки версии: побеждает последняя запись.
func (r *orderRepositoryInMemory) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = updatedAt
	r.items[id] = order
	return order.Clone(), nil
}

// list отбирает заказы по match, сортирует от новых к старым и вырезает страницу.
func (r *orderRepositoryInMemory) list(page domain.Page, match func(domain.Order) bool) ([]domain.Order, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.order))
	for _, id := range r.order {
		order := r.items[id]
		if match(order) {
			result = append(result, order.Clone())
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	total := len(result)
	offset := page.Offset()
	if offset < 0 || offset >= total {
		return []domain.Order{}, total
	}
	result = result[offset:]
	if page.Size > 0 && len(result) > page.Size {
		result = result[:page.Size]
	}
	return result, total
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
