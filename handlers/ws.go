package handlers

import (
	"cafe-ordering-api/middleware"

	"github.com/gin-gonic/gin"
)

// ServeWS upgrades to a websocket session. A valid admin token, in the
// Authorization header or the token query parameter, allows joining the
// admin room.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenStr, ok := middleware.BearerToken(c.Request)
	if !ok {
		tokenStr = c.Query("token")
	}
	admin := false
	if tokenStr != "" {
		_, err := middleware.ParseToken(tokenStr, h.Secret)
		admin = err == nil
	}
	if err := h.Hub.ServeWS(c.Writer, c.Request, admin); err != nil {
		middleware.Logger(c, h.Log).WithError(err).Warn("websocket upgrade failed")
	}
}
