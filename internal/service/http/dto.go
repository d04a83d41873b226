package httpsvc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// money сериализует decimal как точный JSON-number, без округления через float64.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type messageResponse struct {
	Message string `json:"message"`
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type orderItemRequest struct {
	Product   string `json:"product"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type addressPayload struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Line     string `json:"line"`
	City     string `json:"city"`
	Pincode  string `json:"pincode"`
}

type placeOrderRequest struct {
	Items         []orderItemRequest `json:"items"`
	Address       addressPayload     `json:"address"`
	PaymentMethod string             `json:"paymentMethod"`
}

// toInput принимает ссылку на товар как в поле product, так и в productId.
func (r placeOrderRequest) toInput() order.PlaceOrderInput {
	items := make([]domain.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		productID := strings.TrimSpace(item.Product)
		if productID == "" {
			productID = strings.TrimSpace(item.ProductID)
		}
		items = append(items, domain.LineItem{ProductID: productID, Quantity: item.Quantity})
	}
	return order.PlaceOrderInput{
		Items: items,
		Address: domain.Address{
			FullName: r.Address.FullName,
			Phone:    r.Address.Phone,
			Line:     r.Address.Line,
			City:     r.Address.City,
			Pincode:  r.Address.Pincode,
		},
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type productDTO struct {
	ID    string      `json:"_id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
	Image string      `json:"image,omitempty"`
}

type resolvedItemDTO struct {
	Product   *productDTO `json:"product"`
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Subtotal  json.Number `json:"subtotal"`
}

type cartDTO struct {
	User        string            `json:"user,omitempty"`
	Items       []resolvedItemDTO `json:"items"`
	TotalAmount json.Number       `json:"totalAmount"`
	UpdatedAt   *time.Time        `json:"updatedAt,omitempty"`
}

type userDTO struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderItemDTO struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// orderDTO отдаёт заказ без подтянутых товаров (ответ на создание и смену статуса).
type orderDTO struct {
	ID            string         `json:"_id"`
	User          string         `json:"user"`
	Items         []orderItemDTO `json:"items"`
	Address       addressPayload `json:"address"`
	PaymentMethod string         `json:"paymentMethod"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// orderViewDTO отдаёт заказ с товарами по текущим ценам. User содержит строку или профиль владельца.
type orderViewDTO struct {
	ID            string            `json:"_id"`
	User          any               `json:"user"`
	Items         []resolvedItemDTO `json:"items"`
	Address       addressPayload    `json:"address"`
	PaymentMethod string            `json:"paymentMethod"`
	Status        string            `json:"status"`
	TotalAmount   json.Number       `json:"totalAmount"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type orderPageDTO struct {
	Orders      []orderViewDTO `json:"orders"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	TotalCount  int            `json:"totalCount"`
}

type timelineEventDTO struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	Occurred time.Time `json:"occurredAt"`
}

func toResolvedItems(items []domain.ResolvedLineItem) []resolvedItemDTO {
	out := make([]resolvedItemDTO, 0, len(items))
	for _, item := range items {
		dto := resolvedItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  money(item.Subtotal),
		}
		if item.Product != nil {
			dto.Product = &productDTO{
				ID:    item.Product.ID,
				Name:  item.Product.Name,
				Price: money(item.Product.Price),
				Image: item.Product.Image,
			}
		}
		out = append(out, dto)
	}
	return out
}

func toCartDTO(view domain.CartView) cartDTO {
	dto := cartDTO{
		User:        view.UserID,
		Items:       toResolvedItems(view.Items),
		TotalAmount: money(view.TotalAmount),
	}
	if !view.UpdatedAt.IsZero() {
		updated := view.UpdatedAt
		dto.UpdatedAt = &updated
	}
	return dto
}

func toAddressPayload(a domain.Address) addressPayload {
	return addressPayload{FullName: a.FullName, Phone: a.Phone, Line: a.Line, City: a.City, Pincode: a.Pincode}
}

func toOrderDTO(o domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDTO{Product: item.ProductID, Quantity: item.Quantity})
	}
	return orderDTO{
		ID:            o.ID,
		User:          o.UserID,
		Items:         items,
		Address:       toAddressPayload(o.Address),
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderViewDTO(view domain.OrderView) orderViewDTO {
	var user any = view.Order.UserID
	if view.User != nil {
		user = userDTO{ID: view.User.ID, Name: view.User.Name, Email: view.User.Email}
	}
	return orderViewDTO{
		ID:            view.Order.ID,
		User:          user,
		Items:         toResolvedItems(view.Items),
		Address:       toAddressPayload(view.Order.Address),
		PaymentMethod: string(view.Order.PaymentMethod),
		Status:        string(view.Order.Status),
		TotalAmount:   money(view.TotalAmount),
		CreatedAt:     view.Order.CreatedAt,
		UpdatedAt:     view.Order.UpdatedAt,
	}
}

func toOrderViewDTOs(views []domain.OrderView) []orderViewDTO {
	out := make([]orderViewDTO, 0, len(views))
	for _, view := range views {
		out = append(out, toOrderViewDTO(view))
	}
	return out
}

func toTimelineDTOs(events []domain.TimelineEvent) []timelineEventDTO {
	out := make([]timelineEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, timelineEventDTO{
			Type:     event.Type,
			Reason:   event.Reason,
			Actor:    event.Actor,
			Occurred: event.Occurred,
		})
	}
	return out
}
