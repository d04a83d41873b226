package domain

import (
	"context"
	"time"
)

// CartRepository описывает требования к хранилищу корзин.
// Все изменения атомарны на уровне хранилища: параллельные AddItem одного пользователя
// не теряют инкременты.
type CartRepository interface {
	// Get возвращает корзину или ErrCartNotFound.
	Get(ctx context.Context, userID string) (Cart, error)
	// AddItem создаёт корзину при необходимости и увеличивает количество позиции на quantity.
	AddItem(ctx context.Context, userID, productID string, quantity int, now time.Time) (Cart, error)
	// SetItemQuantity задаёт количество абсолютно; ErrCartNotFound или ErrItemNotInCart.
	SetItemQuantity(ctx context.Context, userID, productID string, quantity int, now time.Time) (Cart, error)
	// RemoveItem убирает позицию; ErrCartNotFound, если корзины нет.
	RemoveItem(ctx context.Context, userID, productID string, now time.Time) (Cart, error)
	// Clear очищает позиции; ErrCartNotFound, если корзины нет.
	Clear(ctx context.Context, userID string, now time.Time) error
}

// OrderRepository описывает требования к хранилищу заказов.
// Списки отсортированы по CreatedAt по убыванию, при равенстве в порядке вставки.
type OrderRepository interface {
	// Create сохраняет новый заказ. ErrOrderAlreadyExists, если ID занят.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает страницу заказов пользователя и общее их количество.
	ListByUser(ctx context.Context, userID string, page Page) ([]Order, int, error)
	// List возвращает страницу всех заказов и общее их количество.
	List(ctx context.Context, page Page) ([]Order, int, error)
	// UpdateStatus перезаписывает статус и UpdatedAt (last write wins) и возвращает заказ.
	UpdateStatus(ctx context.Context, id string, status OrderStatus, updatedAt time.Time) (Order, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}
