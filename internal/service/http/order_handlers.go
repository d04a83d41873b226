package httpsvc

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// parsePage читает ?page и ?limit. Некорректные значения заменяются значениями по умолчанию,
// limit=0 означает «без пагинации» там, где это допустимо.
func parsePage(c *gin.Context, defaultLimit int) domain.Page {
	number := 1
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		number = v
	}
	limit := defaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v >= 0 {
		limit = v
	}
	return domain.NewPage(number, limit)
}

func (s *Server) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	placed, err := s.orders.PlaceOrder(c.Request.Context(), mustIdentity(c), req.toInput())
	if err != nil {
		s.respondError(c, "place order", err)
		return
	}
	c.JSON(http.StatusCreated, toOrderDTO(placed))
}

func (s *Server) getOwnOrders(c *gin.Context) {
	page, err := s.orders.GetOwnOrders(c.Request.Context(), mustIdentity(c), parsePage(c, domain.DefaultPageSize))
	if err != nil {
		s.respondError(c, "get own orders", err)
		return
	}
	c.JSON(http.StatusOK, orderPageDTO{
		Orders:      toOrderViewDTOs(page.Orders),
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		TotalCount:  page.TotalCount,
	})
}

// getAllOrders отдаёт массив заказов; без ?limit пагинация не применяется.
func (s *Server) getAllOrders(c *gin.Context) {
	page, err := s.orders.GetAllOrders(c.Request.Context(), parsePage(c, 0))
	if err != nil {
		s.respondError(c, "get all orders", err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(page.TotalCount))
	c.JSON(http.StatusOK, toOrderViewDTOs(page.Orders))
}

func (s *Server) recentOrders(c *gin.Context) {
	views, err := s.orders.RecentOrders(c.Request.Context())
	if err != nil {
		s.respondError(c, "recent orders", err)
		return
	}
	c.JSON(http.StatusOK, toOrderViewDTOs(views))
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	updated, err := s.orders.SetStatus(c.Request.Context(), mustIdentity(c), c.Param("orderId"), domain.OrderStatus(req.Status))
	if err != nil {
		s.respondError(c, "update order status", err)
		return
	}
	c.JSON(http.StatusOK, toOrderDTO(updated))
}

func (s *Server) cancelOrder(c *gin.Context) {
	if _, err := s.orders.CancelOwnOrder(c.Request.Context(), mustIdentity(c), c.Param("orderId")); err != nil {
		s.respondError(c, "cancel order", err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Order cancelled successfully"})
}

func (s *Server) orderTimeline(c *gin.Context) {
	events, err := s.orders.Timeline(c.Request.Context(), mustIdentity(c), c.Param("orderId"))
	if err != nil {
		s.respondError(c, "order timeline", err)
		return
	}
	c.JSON(http.StatusOK, toTimelineDTOs(events))
}
