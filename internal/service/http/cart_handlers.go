package httpsvc

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getCart(c *gin.Context) {
	view, err := s.carts.GetCart(c.Request.Context(), mustIdentity(c))
	if err != nil {
		s.respondError(c, "get cart", err)
		return
	}
	c.JSON(http.StatusOK, toCartDTO(view))
}

func (s *Server) addToCart(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	view, err := s.carts.AddItem(c.Request.Context(), mustIdentity(c), req.ProductID, req.Quantity)
	if err != nil {
		s.respondError(c, "add to cart", err)
		return
	}
	c.JSON(http.StatusOK, toCartDTO(view))
}

func (s *Server) updateCartItem(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	view, err := s.carts.UpdateItemQuantity(c.Request.Context(), mustIdentity(c), c.Param("productId"), req.Quantity)
	if err != nil {
		s.respondError(c, "update cart item", err)
		return
	}
	c.JSON(http.StatusOK, toCartDTO(view))
}

func (s *Server) removeCartItem(c *gin.Context) {
	view, err := s.carts.RemoveItem(c.Request.Context(), mustIdentity(c), c.Param("productId"))
	if err != nil {
		s.respondError(c, "remove cart item", err)
		return
	}
	c.JSON(http.StatusOK, toCartDTO(view))
}

func (s *Server) clearCart(c *gin.Context) {
	if err := s.carts.ClearCart(c.Request.Context(), mustIdentity(c)); err != nil {
		s.respondError(c, "clear cart", err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Cart cleared successfully"})
}
