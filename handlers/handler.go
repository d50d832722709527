package handlers

import (
	"strconv"
	"time"

	"cafe-ordering-api/apperr"
	"cafe-ordering-api/menu"
	"cafe-ordering-api/middleware"
	"cafe-ordering-api/notify"
	"cafe-ordering-api/orders"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler carries the services the HTTP layer talks to.
type Handler struct {
	DB        *gorm.DB
	Menu      *menu.Service
	Orders    *orders.Service
	Hub       *notify.Hub
	Secret    []byte
	TokenTTL  time.Duration
	MaxUpload int64
	Log       logrus.FieldLogger
}

// respondError writes {"error": message} with the status for err's kind.
// Internal causes are logged, never returned.
func (h *Handler) respondError(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		middleware.Logger(c, h.Log).WithError(e.Err).Error(e.Message)
		_ = c.Error(err)
	}
	c.JSON(e.Status(), gin.H{"error": e.Message})
}

// paramID parses the :id route parameter. Ids that cannot exist are
// reported as not found.
func paramID(c *gin.Context, notFound string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, apperr.NotFound(notFound)
	}
	return uint(id), nil
}
