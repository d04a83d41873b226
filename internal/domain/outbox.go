package domain

import "time"

// AggregateOrder задаёт тип агрегата для событий заказа.
const AggregateOrder = "order"

// Типы событий заказа в outbox.
const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
)

// OutboxMessage описывает событие, ожидающее публикации во внешний брокер.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// PartitionKey держит события одного агрегата в одной партиции.
func (m OutboxMessage) PartitionKey() string {
	if m.AggregateID != "" {
		return m.AggregateID
	}
	return m.ID
}

// OutboxPublisher доставляет сообщение наружу. Повторная доставка того же ID допустима.
type OutboxPublisher interface {
	Publish(msg OutboxMessage) error
}

// OutboxStats содержит снимок очереди неотправленных сообщений.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OldestAge возвращает возраст самого старого pending-сообщения, 0 при пустой очереди.
func (s OutboxStats) OldestAge(now time.Time) time.Duration {
	if s.PendingCount == 0 || s.OldestPendingAt.IsZero() {
		return 0
	}
	return now.Sub(s.OldestPendingAt)
}
