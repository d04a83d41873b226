package domain

import "errors"

// Категории ошибок. Транспортный слой сопоставляет их с HTTP-статусами,
// конкретные ошибки ниже оборачивают одну из категорий.
var (
	// ErrInvalidInput — некорректные или отсутствующие поля запроса.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound — сущность не найдена или принадлежит другому пользователю.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState — нарушено предусловие по статусу.
	ErrInvalidState = errors.New("invalid state")
)

var (
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = invalidInput("product id is required")
	// Ошибка количества вне диапазона [1, MaxQuantity].
	ErrQuantityInvalid = invalidInput("quantity must be between 1 and 10000")
	// Ошибка пустого списка позиций заказа.
	ErrNoItems = invalidInput("no items")
	// Ошибка позиции заказа без товара или с количеством вне [1, MaxQuantity].
	ErrOrderItemInvalid = invalidInput("invalid order item")
	// Ошибка неполного адреса доставки.
	ErrIncompleteAddress = invalidInput("incomplete address")
	// Ошибка неизвестного способа оплаты.
	ErrInvalidPaymentMethod = invalidInput("invalid payment method")
	// Ошибка неизвестного статуса заказа.
	ErrInvalidStatus = invalidInput("invalid order status")
	// Ошибка отсутствующего владельца заказа или корзины.
	ErrUserRequired = invalidInput("user id is required")

	// ErrCartNotFound возвращается, если у пользователя ещё нет корзины.
	ErrCartNotFound = notFound("cart not found")
	// ErrItemNotInCart возвращается, если товара нет среди позиций корзины.
	ErrItemNotInCart = notFound("item not in cart")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = notFound("order not found")

	// ErrOrderNotCancellable — владелец может отменить только заказ в статусе Pending.
	ErrOrderNotCancellable = invalidState("only pending orders can be cancelled")
	// ErrStatusTransitionDenied — политика переходов запретила смену статуса.
	ErrStatusTransitionDenied = invalidState("status transition is not allowed")

	// ErrOrderAlreadyExists — повторная вставка заказа с тем же ID.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrUnauthenticated — токен отсутствует или не распознан.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// categorizedError связывает конкретное сообщение с категорией ошибки.
type categorizedError struct {
	category error
	msg      string
}

func (e *categorizedError) Error() string { return e.msg }

func (e *categorizedError) Unwrap() error { return e.category }

func invalidInput(msg string) error { return &categorizedError{category: ErrInvalidInput, msg: msg} }

func notFound(msg string) error { return &categorizedError{category: ErrNotFound, msg: msg} }

func invalidState(msg string) error { return &categorizedError{category: ErrInvalidState, msg: msg} }

// IsInvalidInput проверяет, относится ли ошибка к некорректному вводу.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState проверяет, нарушено ли предусловие по статусу.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
