package memory

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Демо-токены для локального запуска без внешнего каталога.
const (
	DemoUserToken  = "demo-user-token"
	DemoAdminToken = "demo-admin-token"
)

// DemoUser связывает демо-пользователя с его bearer-токеном.
type DemoUser struct {
	Identity domain.Identity
	Token    string
}

// DemoProducts возвращает товары демо-каталога.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: "prod-tshirt", Name: "Cotton T-Shirt", Price: decimal.RequireFromString("499.00"), Image: "/images/tshirt.png"},
		{ID: "prod-mug", Name: "Ceramic Mug", Price: decimal.RequireFromString("249.50"), Image: "/images/mug.png"},
		{ID: "prod-notebook", Name: "A5 Notebook", Price: decimal.RequireFromString("120.00"), Image: "/images/notebook.png"},
	}
}

// DemoUsers возвращает покупателя и администратора.
func DemoUsers() []DemoUser {
	return []DemoUser{
		{Identity: domain.Identity{UserID: "user-demo", Name: "Demo User", Email: "user@example.com", Role: domain.RoleUser}, Token: DemoUserToken},
		{Identity: domain.Identity{UserID: "admin-demo", Name: "Demo Admin", Email: "admin@example.com", Role: domain.RoleAdmin}, Token: DemoAdminToken},
	}
}

// SeedDemo наполняет каталог демо-товарами и демо-пользователями.
func SeedDemo(c *Catalog) {
	for _, product := range DemoProducts() {
		c.PutProduct(product)
	}
	for _, user := range DemoUsers() {
		c.PutUser(user.Identity, user.Token)
	}
}
