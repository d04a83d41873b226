package httpsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

const (
	userToken  = "token-user"
	otherToken = "token-other"
	adminToken = "token-admin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "http-test")
}

type testEnv struct {
	server *Server
	orders domain.OrderRepository

	carts    CartService
	orderSvc OrderService
	catalog  *memory.Catalog
	guard    *idempotency.Guard
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	catalog := memory.NewCatalog()
	catalog.PutProduct(domain.Product{ID: "p-500", Name: "Kettle", Price: decimal.NewFromInt(500), Image: "/kettle.png"})
	catalog.PutProduct(domain.Product{ID: "p-99", Name: "Spoon", Price: decimal.RequireFromString("99.90")})
	catalog.PutUser(domain.Identity{UserID: "u1", Name: "Uma", Email: "uma@example.com", Role: domain.RoleUser}, userToken)
	catalog.PutUser(domain.Identity{UserID: "u2", Name: "Omar", Email: "omar@example.com", Role: domain.RoleUser}, otherToken)
	catalog.PutUser(domain.Identity{UserID: "a1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleAdmin}, adminToken)

	clock := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	orderRepo := memory.NewOrderRepository()
	carts := cart.NewManager(memory.NewCartRepository(), catalog, quietLogger(), cart.WithClock(tick))
	orders := order.NewManager(orderRepo, catalog, catalog, quietLogger(),
		order.WithTimeline(memory.NewTimelineRepository()),
		order.WithClock(tick),
	)
	guard := idempotency.NewGuard(memory.NewIdempotencyRepository(), time.Hour, quietLogger())

	return &testEnv{
		server:   NewServer(carts, orders, catalog, quietLogger(), WithIdempotency(guard)),
		orders:   orderRepo,
		carts:    carts,
		orderSvc: orders,
		catalog:  catalog,
		guard:    guard,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func validOrderBody(productID string, quantity int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product": productID, "quantity": quantity}},
		"address": map[string]any{
			"fullName": "Uma Rao",
			"phone":    "9000000000",
			"line":     "4 Lake View",
			"city":     "Mysuru",
			"pincode":  "570001",
		},
		"paymentMethod": "UPI",
	}
}

func TestAuth(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/cart", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "not authorized, token failed", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodGet, "/api/orders", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/admin/recent-orders", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/orders", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutFlow(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/api/cart", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[cartDTO](t, w)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)

	w = env.do(t, http.MethodPost, "/api/cart", userToken, map[string]any{"productId": "p-500", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	cartView := decode[map[string]any](t, w)
	items := cartView["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.EqualValues(t, 2, line["quantity"])
	assert.Equal(t, "Kettle", line["product"].(map[string]any)["name"])
	assert.EqualValues(t, 1000, cartView["totalAmount"])

	w = env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := decode[orderDTO](t, w)
	assert.Equal(t, "Pending", placed.Status)
	assert.Equal(t, "u1", placed.User)
	require.Len(t, placed.Items, 1)
	assert.Equal(t, orderItemDTO{Product: "p-500", Quantity: 2}, placed.Items[0])
	assert.Equal(t, placed.CreatedAt, placed.UpdatedAt)

	w = env.do(t, http.MethodDelete, "/api/cart/clear", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cart cleared successfully", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodGet, "/api/orders/my", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[orderPageDTO](t, w)
	require.NotEmpty(t, page.Orders)
	assert.Equal(t, placed.ID, page.Orders[0].ID)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 1, page.TotalPages)
}

func TestCartErrors(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodPut, "/api/cart/p-500", userToken, map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/cart/p-500", userToken, map[string]any{"quantity": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "cart not found", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodDelete, "/api/cart/p-500", userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/cart/clear", userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/cart", userToken, map[string]any{"productId": "p-500"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/cart", userToken, map[string]any{"productId": "p-500", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/cart", userToken, map[string]any{"productId": "p-99", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, "/api/cart/p-missing", userToken, map[string]any{"quantity": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "item not in cart", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodDelete, "/api/cart/p-missing", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[cartDTO](t, w).Items, 2)

	w = env.do(t, http.MethodPut, "/api/cart/p-99", userToken, map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "899.6", string(decode[cartDTO](t, w).TotalAmount))
}

func TestPlaceOrderValidation(t *testing.T) {
	env := setupServer(t)

	body := validOrderBody("p-500", 1)
	body["items"] = []map[string]any{}
	w := env.do(t, http.MethodPost, "/api/orders", userToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no items", decode[messageResponse](t, w).Message)

	body = validOrderBody("p-500", 1)
	body["address"].(map[string]any)["pincode"] = ""
	w = env.do(t, http.MethodPost, "/api/orders", userToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "incomplete address", decode[messageResponse](t, w).Message)

	body = validOrderBody("p-500", 1)
	body["paymentMethod"] = "Cheque"
	w = env.do(t, http.MethodPost, "/api/orders", userToken, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = validOrderBody("p-500", 1)
	body["items"] = []map[string]any{{"productId": "p-99", "quantity": 1}}
	w = env.do(t, http.MethodPost, "/api/orders", userToken, body)
	assert.Equal(t, http.StatusCreated, w.Code, "productId is accepted as an alias of product")

	_, total, err := env.orders.List(context.Background(), domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestOwnOrdersPagination(t *testing.T) {
	env := setupServer(t)

	ids := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		w := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", i+1))
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decode[orderDTO](t, w).ID)
	}

	w := env.do(t, http.MethodGet, "/api/orders/my?page=1&limit=5", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[orderPageDTO](t, w)
	assert.Len(t, first.Orders, 5)
	assert.Equal(t, 2, first.TotalPages)
	assert.Equal(t, ids[6], first.Orders[0].ID)

	w = env.do(t, http.MethodGet, "/api/orders/my?page=2&limit=5", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[orderPageDTO](t, w)
	assert.Len(t, second.Orders, 2)
	assert.Equal(t, 2, second.CurrentPage)
	assert.Equal(t, ids[0], second.Orders[1].ID)

	w = env.do(t, http.MethodGet, "/api/orders/my", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[orderPageDTO](t, w).Orders)

	w = env.do(t, http.MethodGet, "/api/orders/my?page=9223372036854775807&limit=10", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	beyond := decode[orderPageDTO](t, w)
	assert.Empty(t, beyond.Orders)
	assert.Equal(t, 1, beyond.TotalPages)
}

func TestAdminOrders(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 1))
	require.Equal(t, http.StatusCreated, w.Code)
	placed := decode[orderDTO](t, w)

	w = env.do(t, http.MethodGet, "/api/orders", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]map[string]any](t, w)
	require.Len(t, all, 1)
	owner := all[0]["user"].(map[string]any)
	assert.Equal(t, "Uma", owner["name"])
	assert.Equal(t, "uma@example.com", owner["email"])
	assert.Equal(t, "1", w.Header().Get("X-Total-Count"))

	w = env.do(t, http.MethodPut, "/api/orders/"+placed.ID+"/status", adminToken, map[string]any{"status": "Teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/orders/missing/status", adminToken, map[string]any{"status": "Shipped"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/orders/"+placed.ID+"/status", userToken, map[string]any{"status": "Shipped"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPut, "/api/orders/"+placed.ID+"/status", adminToken, map[string]any{"status": "Shipped"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[orderDTO](t, w)
	assert.Equal(t, "Shipped", updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	w = env.do(t, http.MethodGet, "/api/admin/recent-orders", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]orderViewDTO](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/orders/"+placed.ID+"/timeline", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	timeline := decode[[]timelineEventDTO](t, w)
	require.Len(t, timeline, 2)
	assert.Equal(t, domain.TimelineOrderStatusChanged, timeline[1].Type)
}

func TestCancelOrder(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 1))
	require.Equal(t, http.StatusCreated, w.Code)
	pending := decode[orderDTO](t, w)

	w = env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-99", 1))
	require.Equal(t, http.StatusCreated, w.Code)
	shipped := decode[orderDTO](t, w)
	w = env.do(t, http.MethodPut, "/api/orders/"+shipped.ID+"/status", adminToken, map[string]any{"status": "Shipped"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/orders/"+pending.ID+"/cancel", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order not found", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodGet, "/api/orders/"+pending.ID+"/timeline", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/orders/"+shipped.ID+"/cancel", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "only pending orders can be cancelled", decode[messageResponse](t, w).Message)

	w = env.do(t, http.MethodDelete, "/api/orders/"+pending.ID+"/cancel", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order cancelled successfully", decode[messageResponse](t, w).Message)

	stored, err := env.orders.Get(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
}

func TestPlaceOrderIdempotency(t *testing.T) {
	env := setupServer(t)

	first := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 2), HeaderIdempotencyKey, "checkout-1")
	require.Equal(t, http.StatusCreated, first.Code)

	replay := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 2), HeaderIdempotencyKey, "checkout-1")
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(HeaderIdempotentReplay))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	conflict := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 3), HeaderIdempotencyKey, "checkout-1")
	assert.Equal(t, http.StatusConflict, conflict.Code)

	// ключи изолированы по пользователю
	other := env.do(t, http.MethodPost, "/api/orders", otherToken, validOrderBody("p-500", 2), HeaderIdempotencyKey, "checkout-1")
	assert.Equal(t, http.StatusCreated, other.Code)

	_, total, err := env.orders.List(context.Background(), domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

// flakyOrders ломает первое оформление заказа ошибкой хранилища или паникой.
type flakyOrders struct {
	OrderService
	panics bool
	calls  int
}

func (f *flakyOrders) PlaceOrder(ctx context.Context, identity domain.Identity, in order.PlaceOrderInput) (domain.Order, error) {
	f.calls++
	if f.calls == 1 {
		if f.panics {
			panic("order store exploded")
		}
		return domain.Order{}, errors.New("connection reset by peer")
	}
	return f.OrderService.PlaceOrder(ctx, identity, in)
}

func TestPlaceOrderIdempotency_RetryAfterFailure(t *testing.T) {
	for _, tc := range []struct {
		name   string
		panics bool
	}{
		{name: "server error"},
		{name: "panic", panics: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := setupServer(t)
			flaky := &flakyOrders{OrderService: env.orderSvc, panics: tc.panics}
			env.server = NewServer(env.carts, flaky, env.catalog, quietLogger(), WithIdempotency(env.guard))

			failed := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 1), HeaderIdempotencyKey, "checkout-9")
			require.Equal(t, http.StatusInternalServerError, failed.Code)

			retry := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 1), HeaderIdempotencyKey, "checkout-9")
			require.Equal(t, http.StatusCreated, retry.Code, retry.Body.String())
			assert.Empty(t, retry.Header().Get(HeaderIdempotentReplay))
			placed := decode[orderDTO](t, retry)

			replay := env.do(t, http.MethodPost, "/api/orders", userToken, validOrderBody("p-500", 1), HeaderIdempotencyKey, "checkout-9")
			require.Equal(t, http.StatusCreated, replay.Code)
			assert.Equal(t, "true", replay.Header().Get(HeaderIdempotentReplay))
			assert.Equal(t, placed.ID, decode[orderDTO](t, replay).ID)
			assert.Equal(t, 2, flaky.calls)
		})
	}
}

type brokenCarts struct{ CartService }

func (brokenCarts) GetCart(context.Context, domain.Identity) (domain.CartView, error) {
	return domain.CartView{}, fmt.Errorf("read cart: %w", errors.New("connection reset by peer"))
}

func TestInternalErrorsAreHidden(t *testing.T) {
	catalog := memory.NewCatalog()
	catalog.PutUser(domain.Identity{UserID: "u1", Role: domain.RoleUser}, userToken)
	server := NewServer(brokenCarts{}, nil, catalog, quietLogger())
	env := &testEnv{server: server}

	w := env.do(t, http.MethodGet, "/api/cart", userToken, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, internalErrorMessage, decode[messageResponse](t, w).Message)
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrQuantityInvalid, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrCartNotFound), http.StatusNotFound},
		{domain.ErrOrderNotCancellable, http.StatusBadRequest},
		{domain.ErrStatusTransitionDenied, http.StatusBadRequest},
		{domain.ErrIdempotencyHashMismatch, http.StatusConflict},
		{domain.ErrIdempotencyInProgress, http.StatusConflict},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapErrorToStatus(tt.err), tt.err.Error())
	}
}

func TestUnknownRoute(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
