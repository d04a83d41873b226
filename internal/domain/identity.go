package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Role — роль пользователя для авторизации.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity — аутентифицированный участник запроса. Разрешается один раз на запрос
// и явно передаётся во все операции.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

// IsAdmin сообщает, обладает ли участник административными правами.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// UserProfile содержит публичные данные владельца заказа для админских выборок.
type UserProfile struct {
	ID    string
	Name  string
	Email string
}

// IdentityResolver превращает проверенный bearer-токен в Identity.
// Возвращает ErrUnauthenticated, если токен неизвестен.
type IdentityResolver interface {
	ResolveToken(ctx context.Context, token string) (Identity, error)
}

// UserDirectory — внешнее хранилище пользователей, только чтение.
type UserDirectory interface {
	// GetUsers возвращает найденные профили; отсутствующие ID в ответ не попадают.
	GetUsers(ctx context.Context, ids []string) (map[string]UserProfile, error)
}

// HashToken возвращает hex(sha256(token)). В хранилищах токены лежат только в таком виде.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
