package handlers

import (
	"net/http"

	"cafe-ordering-api/statemachine"

	"github.com/gin-gonic/gin"
)

// GetMenu returns available items grouped by category (public)
func (h *Handler) GetMenu(c *gin.Context) {
	groups, err := h.Menu.ListAvailable(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// SearchMenu matches available items by name (public)
func (h *Handler) SearchMenu(c *gin.Context) {
	items, err := h.Menu.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetStateMachineInfo describes the usual order progression. Admins may still
// set any known status from any other.
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	transitions := statemachine.GetAllTransitions()
	info := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		info = append(info, gin.H{"from": t.From, "to": t.To})
	}
	c.JSON(http.StatusOK, gin.H{
		"statuses":        statemachine.Statuses(),
		"state_machine":   info,
		"terminal_states": statemachine.TerminalStatuses(),
		"enforced":        false,
		"description":     "Café Order Lifecycle",
	})
}

// Health reports liveness and whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"service":  "Café Ordering API",
		"version":  "1.0.0",
		"sessions": h.Hub.SessionCount(),
	})
}
