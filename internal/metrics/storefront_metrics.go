package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// StorefrontMetrics содержит бизнес-метрики корзин и заказов.
type StorefrontMetrics struct {
	cartOperations *prometheus.CounterVec
	ordersPlaced   prometheus.Counter
	statusChanges  *prometheus.CounterVec
	cancellations  prometheus.Counter
	timelineEvents prometheus.Counter
	outboxEnqueued *prometheus.CounterVec
}

// NewStorefrontMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStorefrontMetrics() *StorefrontMetrics {
	return NewStorefrontMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorefrontMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewStorefrontMetricsWithRegisterer(registerer prometheus.Registerer) *StorefrontMetrics {
	return &StorefrontMetrics{
		cartOperations: register(registerer, "cart_operations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Total number of cart operations by kind and outcome",
		}, []string{"operation", "outcome"})),
		ordersPlaced: register(registerer, "orders_placed_total", prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Total number of orders placed",
		})),
		statusChanges: register(registerer, "order_status_changes_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Total number of administrative status changes by target status",
		}, []string{"status"})),
		cancellations: register(registerer, "orders_cancelled_total", prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Total number of orders cancelled by their owners",
		})),
		timelineEvents: register(registerer, "timeline_events_total", prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_events_total",
			Help:      "Total number of order timeline events recorded",
		})),
		outboxEnqueued: register(registerer, "outbox_enqueued_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_enqueued_total",
			Help:      "Total number of order events written to the outbox",
		}, []string{"event_type"})),
	}
}

// RecordCartOperation учитывает операцию с корзиной; err == nil означает успех.
func (m *StorefrontMetrics) RecordCartOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.cartOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *StorefrontMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordStatusChange учитывает смену статуса администратором.
func (m *StorefrontMetrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordCancellation увеличивает счётчик отмен владельцем.
func (m *StorefrontMetrics) RecordCancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий таймлайна.
func (m *StorefrontMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEnqueued учитывает событие, записанное в outbox.
func (m *StorefrontMetrics) RecordOutboxEnqueued(eventType string) {
	if m == nil {
		return
	}
	m.outboxEnqueued.WithLabelValues(eventType).Inc()
}
