package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// queryer покрывает чтение и через *sql.DB, и через *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type cartRepository struct {
	store *Store
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
// Инкремент количества выполняется одним UPSERT, поэтому параллельные добавления не теряются.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{store: store}
}

func (r *cartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return loadCart(ctx, r.store.DB(), userID)
}

func (r *cartRepository) AddItem(ctx context.Context, userID, productID string, quantity int, now time.Time) (domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Cart{}, domain.ErrUserRequired
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var cart domain.Cart
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO carts (user_id, created_at, updated_at)
			VALUES ($1, $2, $2)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
		`, userID, now); err != nil {
			return fmt.Errorf("upsert cart: %w", err)
		}
		// Строка не затрагивается, если сумма превысит лимит: транзакция откатывается целиком.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			WHERE cart_items.quantity + EXCLUDED.quantity <= $4
		`, userID, productID, quantity, domain.MaxQuantity)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if affected == 0 {
			return domain.ErrQuantityInvalid
		}

		cart, err = loadCart(ctx, tx, userID)
		return err
	})
	return cart, err
}

func (r *cartRepository) SetItemQuantity(ctx context.Context, userID, productID string, quantity int, now time.Time) (domain.Cart, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var cart domain.Cart
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchCart(ctx, tx, userID, now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE cart_items SET quantity = $3
			WHERE user_id = $1 AND product_id = $2
		`, userID, productID, quantity)
		if err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if affected == 0 {
			return domain.ErrItemNotInCart
		}

		cart, err = loadCart(ctx, tx, userID)
		return err
	})
	return cart, err
}

func (r *cartRepository) RemoveItem(ctx context.Context, userID, productID string, now time.Time) (domain.Cart, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var cart domain.Cart
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchCart(ctx, tx, userID, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2
		`, userID, productID); err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}

		var err error
		cart, err = loadCart(ctx, tx, userID)
		return err
	})
	return cart, err
}

func (r *cartRepository) Clear(ctx context.Context, userID string, now time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := touchCart(ctx, tx, userID, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear cart items: %w", err)
		}
		return nil
	})
}

// touchCart обновляет updated_at и заодно проверяет, что корзина существует.
func touchCart(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = $2 WHERE user_id = $1`, userID, now)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func loadCart(ctx context.Context, q queryer, userID string) (domain.Cart, error) {
	cart := domain.Cart{UserID: userID}
	err := q.QueryRowContext(ctx, `
		SELECT created_at, updated_at FROM carts WHERE user_id = $1
	`, userID).Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("select cart: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = make([]domain.LineItem, 0)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}

	return cart, nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
