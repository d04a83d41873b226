package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Catalog читает товары и пользователей из таблиц products и users.
// Реализует ProductCatalog, UserDirectory и IdentityResolver.
type Catalog struct {
	store *Store
}

// NewCatalog создаёт PostgreSQL-каталог.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{store: store}
}

// UpsertProduct добавляет или обновляет товар. Используется для сидирования и в тестах.
func (c *Catalog) UpsertProduct(ctx context.Context, product domain.Product) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := c.store.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, image)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, image = EXCLUDED.image
	`, product.ID, product.Name, product.Price.StringFixed(2), product.Image); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// UpsertUser регистрирует пользователя; токен сохраняется только хешем.
func (c *Catalog) UpsertUser(ctx context.Context, identity domain.Identity, token string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var tokenHash sql.NullString
	if token != "" {
		tokenHash = sql.NullString{String: domain.HashToken(token), Valid: true}
	}
	if _, err := c.store.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, token_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role, token_hash = EXCLUDED.token_hash
	`, identity.UserID, identity.Name, identity.Email, string(identity.Role), tokenHash); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (c *Catalog) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	placeholders, args := inList(ids)
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT id, name, price::text, image FROM products WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			product domain.Product
			price   string
		)
		if err := rows.Scan(&product.ID, &product.Name, &price, &product.Image); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if product.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", product.ID, err)
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

func (c *Catalog) GetUsers(ctx context.Context, ids []string) (map[string]domain.UserProfile, error) {
	result := make(map[string]domain.UserProfile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	placeholders, args := inList(ids)
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT id, name, email FROM users WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user domain.UserProfile
		if err := rows.Scan(&user.ID, &user.Name, &user.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}

func (c *Catalog) ResolveToken(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		identity domain.Identity
		role     string
	)
	err := c.store.db.QueryRowContext(ctx, `
		SELECT id, name, email, role FROM users WHERE token_hash = $1
	`, domain.HashToken(token)).Scan(&identity.UserID, &identity.Name, &identity.Email, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Identity{}, domain.ErrUnauthenticated
		}
		return domain.Identity{}, fmt.Errorf("resolve token: %w", err)
	}
	identity.Role = domain.Role(role)
	return identity, nil
}

func inList(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}

var (
	_ domain.ProductCatalog   = (*Catalog)(nil)
	_ domain.UserDirectory    = (*Catalog)(nil)
	_ domain.IdentityResolver = (*Catalog)(nil)
)
