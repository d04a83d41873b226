// Package httpsvc публикует корзину и заказы через HTTP/JSON API под префиксом /api.
package httpsvc

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// CartService описывает операции корзины, которые нужны транспорту.
type CartService interface {
	GetCart(ctx context.Context, identity domain.Identity) (domain.CartView, error)
	AddItem(ctx context.Context, identity domain.Identity, productID string, quantity int) (domain.CartView, error)
	UpdateItemQuantity(ctx context.Context, identity domain.Identity, productID string, quantity int) (domain.CartView, error)
	RemoveItem(ctx context.Context, identity domain.Identity, productID string) (domain.CartView, error)
	ClearCart(ctx context.Context, identity domain.Identity) error
}

// OrderService описывает операции заказов, которые нужны транспорту.
type OrderService interface {
	PlaceOrder(ctx context.Context, identity domain.Identity, in order.PlaceOrderInput) (domain.Order, error)
	GetOwnOrders(ctx context.Context, identity domain.Identity, page domain.Page) (domain.OrderPage, error)
	GetAllOrders(ctx context.Context, page domain.Page) (domain.OrderPage, error)
	RecentOrders(ctx context.Context) ([]domain.OrderView, error)
	SetStatus(ctx context.Context, actor domain.Identity, orderID string, status domain.OrderStatus) (domain.Order, error)
	CancelOwnOrder(ctx context.Context, identity domain.Identity, orderID string) (domain.Order, error)
	Timeline(ctx context.Context, identity domain.Identity, orderID string) ([]domain.TimelineEvent, error)
}

// Option настраивает Server.
type Option func(*Server)

// WithIdempotency включает обработку заголовка Idempotency-Key на POST /api/orders.
func WithIdempotency(guard *idempotency.Guard) Option {
	return func(s *Server) { s.guard = guard }
}

// WithMetrics подключает HTTP-метрики.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server обслуживает API витрины поверх gin.
type Server struct {
	engine     *gin.Engine
	carts      CartService
	orders     OrderService
	identities domain.IdentityResolver
	guard      *idempotency.Guard
	metrics    *metrics.HTTPMetrics
	logger     *log.Entry
}

// NewServer собирает gin engine и регистрирует маршруты.
func NewServer(carts CartService, orders OrderService, identities domain.IdentityResolver, logger *log.Entry, opts ...Option) *Server {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	s := &Server{
		carts:      carts,
		orders:     orders,
		identities: identities,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, messageResponse{Message: "route not found"})
	})
	s.engine = r
	s.registerRoutes()
	return s
}

// Engine возвращает http.Handler для http.Server и тестов.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api", s.authenticate())
	{
		cart := api.Group("/cart")
		cart.GET("", s.getCart)
		cart.POST("", s.addToCart)
		cart.DELETE("/clear", s.clearCart)
		cart.PUT("/:productId", s.updateCartItem)
		cart.DELETE("/:productId", s.removeCartItem)

		orders := api.Group("/orders")
		orders.POST("", s.idempotent(), s.placeOrder)
		orders.GET("/my", s.getOwnOrders)
		orders.GET("", s.requireAdmin(), s.getAllOrders)
		orders.PUT("/:orderId/status", s.requireAdmin(), s.updateOrderStatus)
		orders.DELETE("/:orderId/cancel", s.cancelOrder)
		orders.GET("/:orderId/timeline", s.orderTimeline)

		admin := api.Group("/admin", s.requireAdmin())
		admin.GET("/recent-orders", s.recentOrders)
	}
}
