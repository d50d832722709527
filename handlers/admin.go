package handlers

import (
	"net/http"
	"time"

	"cafe-ordering-api/orders"

	"github.com/gin-gonic/gin"
)

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ListOrders returns orders newest first, optionally filtered by status and table
func (h *Handler) ListOrders(c *gin.Context) {
	list, err := h.Orders.List(c.Request.Context(), orders.Filter{
		Status: c.Query("status"),
		Table:  c.Query("table"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// UpdateOrderStatus sets an order's status; any known status is accepted
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, err := paramID(c, "Order not found")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	order, err := h.Orders.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetSummary reports today's order counts and revenue
func (h *Handler) GetSummary(c *gin.Context) {
	sum, err := h.Orders.Summary(c.Request.Context(), time.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
