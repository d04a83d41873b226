package domain

// StatusPolicy решает, допустим ли административный переход между статусами.
type StatusPolicy interface {
	Allow(from, to OrderStatus) bool
}

// PermissiveStatusPolicy разрешает любой переход между допустимыми статусами.
type PermissiveStatusPolicy struct{}

// Allow реализует StatusPolicy.
func (PermissiveStatusPolicy) Allow(from, to OrderStatus) bool {
	return to.Valid()
}

// TransitionTable разрешает переходы по таблице.
// Отсутствующий ключ означает, что из статуса переходить нельзя.
type TransitionTable map[OrderStatus][]OrderStatus

// Allow реализует StatusPolicy.
func (t TransitionTable) Allow(from, to OrderStatus) bool {
	if !to.Valid() {
		return false
	}
	for _, allowed := range t[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ForwardOnlyTransitions — пример ужесточённой политики: движение только вперёд,
// отмена возможна до отгрузки. По умолчанию не используется.
var ForwardOnlyTransitions = TransitionTable{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}
