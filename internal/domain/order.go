package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает стадию жизненного цикла заказа. Значения совпадают с wire-форматом.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ждёт обработки, владелец ещё может его отменить.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusConfirmed — заказ подтверждён магазином.
	OrderStatusConfirmed OrderStatus = "Confirmed"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses перечисляет все допустимые статусы в порядке жизненного цикла.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid проверяет, что статус входит в перечисление.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentMethod хранит способ оплаты как метку, платёжный шлюз не вызывается.
type PaymentMethod string

const (
	PaymentMethodUPI            PaymentMethod = "UPI"
	PaymentMethodCashOnDelivery PaymentMethod = "COD"
	PaymentMethodCard           PaymentMethod = "Card"
)

// Valid проверяет, что способ оплаты входит в закрытое перечисление.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCashOnDelivery, PaymentMethodCard:
		return true
	default:
		return false
	}
}

// Address описывает адрес доставки. Все поля обязательны, формат не проверяется.
type Address struct {
	FullName string
	Phone    string
	Line     string
	City     string
	Pincode  string
}

// Complete сообщает, что все пять полей заполнены непробельными значениями.
func (a Address) Complete() bool {
	for _, field := range []string{a.FullName, a.Phone, a.Line, a.City, a.Pincode} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

// Order — заказ, созданный из снимка корзины. Цена в заказе не фиксируется:
// она подтягивается из каталога при каждом чтении.
type Order struct {
	ID            string
	UserID        string
	Items         []LineItem
	Address       Address
	PaymentMethod PaymentMethod
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ValidatePlacement проверяет входные данные нового заказа и возвращает первую найденную ошибку.
// Порядок проверок фиксирован: позиции, адрес, способ оплаты.
func ValidatePlacement(items []LineItem, address Address, method PaymentMethod) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || !ValidQuantity(item.Quantity) {
			return ErrOrderItemInvalid
		}
	}
	if !address.Complete() {
		return ErrIncompleteAddress
	}
	if !method.Valid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// CancellableByOwner сообщает, может ли владелец отменить заказ.
func (o *Order) CancellableByOwner() bool {
	return o.Status == OrderStatusPending
}

// OwnedBy проверяет владельца заказа.
func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

// Clone возвращает копию заказа с независимым срезом позиций.
func (o Order) Clone() Order {
	o.Items = CloneLineItems(o.Items)
	return o
}
