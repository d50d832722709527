package routes

import (
	"net/http"

	"cafe-ordering-api/handlers"
	"cafe-ordering-api/metrics"
	"cafe-ordering-api/middleware"

	"github.com/gin-gonic/gin"
)

// Options controls the parts of the route table that depend on deployment.
type Options struct {
	LoginRatePerMin int
	// UploadDir is served under UploadURLPrefix when images live on disk.
	UploadDir       string
	UploadURLPrefix string
	// StaticDir holds the customer and admin front-ends.
	StaticDir string
}

func SetupRoutes(r *gin.Engine, h *handlers.Handler, opts Options) {
	// ── Operational ────────────────────────────────────────────────
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/ws", h.ServeWS)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.GET("/menu", h.GetMenu)
		public.GET("/menu/search", h.SearchMenu)

		public.POST("/orders", h.PlaceOrder)
		public.GET("/orders/:id", h.GetOrder)

		// State machine info (informational only)
		public.GET("/state-machine", h.GetStateMachineInfo)

		public.POST("/admin/login", middleware.RateLimit(middleware.NewIPRateLimiter(opts.LoginRatePerMin)), h.Login)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(h.Secret))
	{
		admin.GET("/orders", h.ListOrders)
		admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)

		admin.GET("/menu", h.ListMenuItems)
		admin.POST("/menu", h.AddMenuItem)
		admin.PUT("/menu/:id", h.UpdateMenuItem)
		admin.DELETE("/menu/:id", h.DeleteMenuItem)

		admin.GET("/summary", h.GetSummary)
	}

	// ── Static files ───────────────────────────────────────────────
	if opts.UploadDir != "" && opts.UploadURLPrefix != "" {
		r.Static(opts.UploadURLPrefix, opts.UploadDir)
	}
	if opts.StaticDir != "" {
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet {
				c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
				return
			}
			http.FileServer(http.Dir(opts.StaticDir)).ServeHTTP(c.Writer, c.Request)
		})
	}
}
