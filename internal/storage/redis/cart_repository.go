// Package redis хранит корзины в Redis: метаданные и позиции лежат в отдельных hash,
// порядок добавления товаров держит sorted set.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"

	// DefaultKeyPrefix используется, если префикс не задан в конфигурации.
	DefaultKeyPrefix = "storefront:"
)

// Коды ответа Lua-скриптов.
const (
	scriptCartMissing      = -2
	scriptQuantityExceeded = -1
	scriptItemMissing      = 0
)

// addItemScript проверяет лимит и увеличивает количество одной операцией.
// KEYS: meta, items, order. ARGV: product, delta, stamp, score, max.
var addItemScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
if current + tonumber(ARGV[2]) > tonumber(ARGV[5]) then
	return -1
end
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[3])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
redis.call('ZADD', KEYS[3], 'NX', ARGV[4], ARGV[1])
return redis.call('HINCRBY', KEYS[2], ARGV[1], ARGV[2])
`)

// setQuantityScript меняет количество только существующей позиции.
// KEYS: meta, items. ARGV: product, quantity, stamp.
var setQuantityScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -2
end
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
return 1
`)

// CartRepository реализует domain.CartRepository поверх Redis.
// Добавление и смена количества выполняются Lua-скриптами, остальные записи идут через MULTI/EXEC.
type CartRepository struct {
	client redis.Cmdable
	prefix string
}

// NewCartRepository создаёт репозиторий корзин. Пустой prefix заменяется на DefaultKeyPrefix.
func NewCartRepository(client redis.Cmdable, prefix string) *CartRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &CartRepository{client: client, prefix: prefix}
}

func (r *CartRepository) metaKey(userID string) string  { return r.prefix + "cart:" + userID }
func (r *CartRepository) itemsKey(userID string) string { return r.prefix + "cart:" + userID + ":items" }
func (r *CartRepository) orderKey(userID string) string { return r.prefix + "cart:" + userID + ":order" }

func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	meta, err := r.client.HGetAll(ctx, r.metaKey(userID)).Result()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("read cart meta: %w", err)
	}
	if len(meta) == 0 {
		return domain.Cart{}, domain.ErrCartNotFound
	}

	order, err := r.client.ZRange(ctx, r.orderKey(userID), 0, -1).Result()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("read cart order: %w", err)
	}
	quantities, err := r.client.HGetAll(ctx, r.itemsKey(userID)).Result()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("read cart items: %w", err)
	}

	cart := domain.Cart{
		UserID:    userID,
		CreatedAt: parseNanos(meta[fieldCreatedAt]),
		UpdatedAt: parseNanos(meta[fieldUpdatedAt]),
	}
	cart.Items, err = orderedItems(order, quantities)
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// AddItem лениво создаёт корзину и атомарно увеличивает количество позиции.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, quantity int, now time.Time) (domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}

	res, err := addItemScript.Run(ctx, r.client,
		[]string{r.metaKey(userID), r.itemsKey(userID), r.orderKey(userID)},
		productID, strconv.Itoa(quantity), formatNanos(now),
		strconv.FormatInt(now.UnixMicro(), 10), strconv.Itoa(domain.MaxQuantity),
	).Int()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("add cart item: %w", err)
	}
	if res == scriptQuantityExceeded {
		return domain.Cart{}, domain.ErrQuantityInvalid
	}
	return r.Get(ctx, userID)
}

func (r *CartRepository) SetItemQuantity(ctx context.Context, userID, productID string, quantity int, now time.Time) (domain.Cart, error) {
	res, err := setQuantityScript.Run(ctx, r.client,
		[]string{r.metaKey(userID), r.itemsKey(userID)},
		productID, strconv.Itoa(quantity), formatNanos(now),
	).Int()
	if err != nil {
		return domain.Cart{}, fmt.Errorf("set cart item quantity: %w", err)
	}
	switch res {
	case scriptCartMissing:
		return domain.Cart{}, domain.ErrCartNotFound
	case scriptItemMissing:
		return domain.Cart{}, domain.ErrItemNotInCart
	}
	return r.Get(ctx, userID)
}

func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string, now time.Time) (domain.Cart, error) {
	if err := r.ensureCart(ctx, userID); err != nil {
		return domain.Cart{}, err
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.itemsKey(userID), productID)
		pipe.ZRem(ctx, r.orderKey(userID), productID)
		pipe.HSet(ctx, r.metaKey(userID), fieldUpdatedAt, formatNanos(now))
		return nil
	})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("remove cart item: %w", err)
	}
	return r.Get(ctx, userID)
}

func (r *CartRepository) Clear(ctx context.Context, userID string, now time.Time) error {
	if err := r.ensureCart(ctx, userID); err != nil {
		return err
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.itemsKey(userID), r.orderKey(userID))
		pipe.HSet(ctx, r.metaKey(userID), fieldUpdatedAt, formatNanos(now))
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *CartRepository) ensureCart(ctx context.Context, userID string) error {
	n, err := r.client.Exists(ctx, r.metaKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("check cart: %w", err)
	}
	if n == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

// orderedItems собирает позиции в порядке добавления. Позиции без записи в sorted set
// идут в конце по возрастанию productID.
func orderedItems(order []string, quantities map[string]string) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(quantities))
	seen := make(map[string]struct{}, len(order))

	appendItem := func(productID string) error {
		raw, ok := quantities[productID]
		if !ok {
			return nil
		}
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse quantity of %s: %w", productID, err)
		}
		seen[productID] = struct{}{}
		items = append(items, domain.LineItem{ProductID: productID, Quantity: qty})
		return nil
	}

	for _, productID := range order {
		if err := appendItem(productID); err != nil {
			return nil, err
		}
	}

	rest := make([]string, 0)
	for productID := range quantities {
		if _, ok := seen[productID]; !ok {
			rest = append(rest, productID)
		}
	}
	sort.Strings(rest)
	for _, productID := range rest {
		if err := appendItem(productID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func formatNanos(t time.Time) string {
	return strconv.FormatInt(t.UTC().UnixNano(), 10)
}

func parseNanos(raw string) time.Time {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var _ domain.CartRepository = (*CartRepository)(nil)
