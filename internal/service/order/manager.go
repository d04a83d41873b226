// Package order реализует жизненный цикл заказа: оформление из снимка корзины,
// административную смену статуса и отмену владельцем.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// RecentOrdersLimit ограничивает админскую сводку последних заказов.
const RecentOrdersLimit = 5

// PlaceOrderInput содержит данные нового заказа.
type PlaceOrderInput struct {
	Items         []domain.LineItem
	Address       domain.Address
	PaymentMethod domain.PaymentMethod
}

// Manager управляет заказами. Таймлайн и outbox опциональны: их ошибки логируются
// и не прерывают основную операцию.
type Manager struct {
	orders   domain.OrderRepository
	catalog  domain.ProductCatalog
	users    domain.UserDirectory
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	policy   domain.StatusPolicy
	logger   *log.Entry
	metrics  *metrics.StorefrontMetrics
	now      func() time.Time
	newID    func() string
}

// Option настраивает Manager.
type Option func(*Manager)

// WithTimeline включает запись событий таймлайна.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(m *Manager) { m.timeline = repo }
}

// WithOutbox включает постановку событий заказа в outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(m *Manager) { m.outbox = repo }
}

// WithStatusPolicy подменяет политику административных переходов.
func WithStatusPolicy(policy domain.StatusPolicy) Option {
	return func(m *Manager) {
		if policy != nil {
			m.policy = policy
		}
	}
}

// WithMetrics подключает бизнес-метрики.
func WithMetrics(sm *metrics.StorefrontMetrics) Option {
	return func(m *Manager) { m.metrics = sm }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// NewManager создаёт менеджер заказов с разрешающей политикой статусов.
func NewManager(
	orders domain.OrderRepository,
	catalog domain.ProductCatalog,
	users domain.UserDirectory,
	logger *log.Entry,
	opts ...Option,
) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "order-manager")
	}
	m := &Manager{
		orders:  orders,
		catalog: catalog,
		users:   users,
		policy:  domain.PermissiveStatusPolicy{},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PlaceOrder создаёт заказ в статусе Pending. Корзину не трогает, очистка выполняется отдельным вызовом.
func (m *Manager) PlaceOrder(ctx context.Context, identity domain.Identity, in PlaceOrderInput) (domain.Order, error) {
	if err := domain.ValidatePlacement(in.Items, in.Address, in.PaymentMethod); err != nil {
		return domain.Order{}, err
	}
	if identity.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}

	now := m.now()
	order := domain.Order{
		ID:            m.newID(),
		UserID:        identity.UserID,
		Items:         domain.CloneLineItems(in.Items),
		Address:       in.Address,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.orders.Create(ctx, order); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"user_id":  identity.UserID,
		}).Error("create order failed")
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	m.metrics.RecordOrderPlaced()
	m.record(ctx, order, domain.TimelineOrderPlaced, string(order.Status), identity.UserID)
	m.publish(ctx, order, domain.EventOrderPlaced)
	return order, nil
}

// GetOwnOrders возвращает страницу заказов участника, новые сверху.
func (m *Manager) GetOwnOrders(ctx context.Context, identity domain.Identity, page domain.Page) (domain.OrderPage, error) {
	orders, total, err := m.orders.ListByUser(ctx, identity.UserID, page)
	if err != nil {
		return domain.OrderPage{}, m.internal("list own orders", identity, "", err)
	}
	views, err := m.views(ctx, orders, false)
	if err != nil {
		return domain.OrderPage{}, m.internal("resolve own orders", identity, "", err)
	}
	return newOrderPage(views, page, total), nil
}

// GetAllOrders возвращает все заказы с данными владельцев. При Page.Size == 0 пагинация не применяется.
func (m *Manager) GetAllOrders(ctx context.Context, page domain.Page) (domain.OrderPage, error) {
	orders, total, err := m.orders.List(ctx, page)
	if err != nil {
		return domain.OrderPage{}, m.internal("list orders", domain.Identity{}, "", err)
	}
	views, err := m.views(ctx, orders, true)
	if err != nil {
		return domain.OrderPage{}, m.internal("resolve orders", domain.Identity{}, "", err)
	}
	return newOrderPage(views, page, total), nil
}

// RecentOrders возвращает RecentOrdersLimit последних заказов с владельцами.
func (m *Manager) RecentOrders(ctx context.Context) ([]domain.OrderView, error) {
	page, err := m.GetAllOrders(ctx, domain.Page{Number: 1, Size: RecentOrdersLimit})
	if err != nil {
		return nil, err
	}
	return page.Orders, nil
}

// SetStatus перезаписывает статус заказа (только для администратора).
// Допустимость перехода решает StatusPolicy.
func (m *Manager) SetStatus(ctx context.Context, actor domain.Identity, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	current, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, m.passOrLog("get order", actor, orderID, err)
	}
	if !m.policy.Allow(current.Status, status) {
		return domain.Order{}, domain.ErrStatusTransitionDenied
	}

	updated, err := m.orders.UpdateStatus(ctx, orderID, status, m.now())
	if err != nil {
		return domain.Order{}, m.passOrLog("update order status", actor, orderID, err)
	}

	m.metrics.RecordStatusChange(string(status))
	m.record(ctx, updated, domain.TimelineOrderStatusChanged, string(status), actor.UserID)
	m.publish(ctx, updated, domain.EventOrderStatusChanged)
	return updated, nil
}

// CancelOwnOrder отменяет заказ владельца. Чужой и отсутствующий заказ неразличимы: оба NotFound.
func (m *Manager) CancelOwnOrder(ctx context.Context, identity domain.Identity, orderID string) (domain.Order, error) {
	current, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, m.passOrLog("get order", identity, orderID, err)
	}
	if !current.OwnedBy(identity.UserID) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !current.CancellableByOwner() {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}

	cancelled, err := m.orders.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled, m.now())
	if err != nil {
		return domain.Order{}, m.passOrLog("cancel order", identity, orderID, err)
	}

	m.metrics.RecordCancellation()
	m.record(ctx, cancelled, domain.TimelineOrderCancelled, "cancelled by owner", identity.UserID)
	m.publish(ctx, cancelled, domain.EventOrderCancelled)
	return cancelled, nil
}

// Timeline возвращает историю заказа владельцу или администратору.
func (m *Manager) Timeline(ctx context.Context, identity domain.Identity, orderID string) ([]domain.TimelineEvent, error) {
	current, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, m.passOrLog("get order", identity, orderID, err)
	}
	if !identity.IsAdmin() && !current.OwnedBy(identity.UserID) {
		return nil, domain.ErrOrderNotFound
	}
	if m.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	events, err := m.timeline.List(ctx, orderID)
	if err != nil {
		return nil, m.internal("list timeline", identity, orderID, err)
	}
	return events, nil
}

func (m *Manager) views(ctx context.Context, orders []domain.Order, withUsers bool) ([]domain.OrderView, error) {
	views := make([]domain.OrderView, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	groups := make([][]domain.LineItem, 0, len(orders))
	for _, o := range orders {
		groups = append(groups, o.Items)
	}
	products, err := m.catalog.GetProducts(ctx, domain.ProductIDs(groups...))
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	var profiles map[string]domain.UserProfile
	if withUsers && m.users != nil {
		profiles, err = m.users.GetUsers(ctx, userIDs(orders))
		if err != nil {
			return nil, fmt.Errorf("resolve users: %w", err)
		}
	}

	for _, o := range orders {
		items, total := domain.ResolveLineItems(o.Items, products)
		view := domain.OrderView{Order: o, Items: items, TotalAmount: total}
		if profile, ok := profiles[o.UserID]; ok {
			p := profile
			view.User = &p
		}
		views = append(views, view)
	}
	return views, nil
}

func userIDs(orders []domain.Order) []string {
	seen := make(map[string]struct{}, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.UserID]; ok {
			continue
		}
		seen[o.UserID] = struct{}{}
		ids = append(ids, o.UserID)
	}
	return ids
}

func newOrderPage(views []domain.OrderView, page domain.Page, total int) domain.OrderPage {
	current := page.Number
	if current < 1 {
		current = 1
	}
	return domain.OrderPage{
		Orders:      views,
		TotalPages:  page.TotalPages(total),
		CurrentPage: current,
		TotalCount:  total,
	}
}

// orderEventPayload описывает тело событий заказа в outbox.
type orderEventPayload struct {
	OrderID       string           `json:"order_id"`
	UserID        string           `json:"user_id"`
	Status        string           `json:"status"`
	PaymentMethod string           `json:"payment_method"`
	Items         []orderEventItem `json:"items"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

type orderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (m *Manager) publish(ctx context.Context, order domain.Order, eventType string) {
	if m.outbox == nil {
		return
	}

	payload := orderEventPayload{
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		Items:         make([]orderEventItem, 0, len(order.Items)),
		OccurredAt:    order.UpdatedAt,
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderEventItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal outbox payload failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := m.outbox.Enqueue(ctx, msg); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue outbox failed")
		return
	}
	m.metrics.RecordOutboxEnqueued(eventType)
}

func (m *Manager) record(ctx context.Context, order domain.Order, eventType, reason, actor string) {
	if m.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Reason:   reason,
		Actor:    actor,
		Occurred: order.UpdatedAt,
	}
	if err := m.timeline.Append(ctx, event); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	m.metrics.RecordTimelineEvent()
}

// passOrLog пропускает ожидаемые бизнес-ошибки и логирует остальные.
func (m *Manager) passOrLog(operation string, identity domain.Identity, orderID string, err error) error {
	if domain.IsNotFound(err) || domain.IsInvalidInput(err) || domain.IsInvalidState(err) {
		return err
	}
	return m.internal(operation, identity, orderID, err)
}

func (m *Manager) internal(operation string, identity domain.Identity, orderID string, err error) error {
	m.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"user_id":   identity.UserID,
		"order_id":  orderID,
	}).Error("order operation failed")
	return fmt.Errorf("%s: %w", operation, err)
}
