package handlers

import (
	"net/http"

	"cafe-ordering-api/orders"

	"github.com/gin-gonic/gin"
)

// PlaceOrder creates a pending order from the customer's cart (public)
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req orders.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order payload: " + err.Error()})
		return
	}
	order, err := h.Orders.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder returns a single order for the tracking page (public)
func (h *Handler) GetOrder(c *gin.Context) {
	id, err := paramID(c, "Order not found")
	if err != nil {
		h.respondError(c, err)
		return
	}
	order, err := h.Orders.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
