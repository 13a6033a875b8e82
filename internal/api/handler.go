package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"grape-store/config"
	"grape-store/internal/service"
	"grape-store/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles everything the HTTP layer calls into
type Services struct {
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Carts    *service.CartService
	Orders   *service.OrderService
	Payments *service.PaymentService
	Admin    *service.AdminOrderService
	Stats    *service.StatsService
	Dealers  *service.DealerService
	Settings *service.SettingsService
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	svc        Services
	tokens     TokenParser
	limiter    RateLimiter
	rateLimits config.RateLimitConfig
	checks     map[string]ReadinessCheck
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, limiter RateLimiter, rateLimits config.RateLimitConfig, checks map[string]ReadinessCheck) *Handler {
	h := &Handler{
		svc:        svc,
		limiter:    limiter,
		rateLimits: rateLimits,
		checks:     checks,
		logger:     util.Named("api"),
	}
	if svc.Auth != nil {
		h.tokens = svc.Auth
	}
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", rateLimit(h.limiter, "register", h.rateLimits.RegisterLimit, h.rateLimits.RegisterWindow), h.register)
		auth.POST("/login", rateLimit(h.limiter, "login", h.rateLimits.LoginLimit, h.rateLimits.LoginWindow), h.login)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.POST("/dealer-requests", h.submitDealerRequest)
		v1.GET("/settings/public", h.publicSettings)
		v1.POST("/payments/webhook", h.paymentWebhook)

		customer := v1.Group("")
		customer.Use(authMiddleware(h.tokens))
		{
			customer.GET("/auth/me", h.me)

			customer.GET("/cart", h.getCart)
			customer.DELETE("/cart", h.clearCart)
			customer.POST("/cart/items", h.addCartItem)
			customer.PUT("/cart/items/:productId", h.updateCartItem)
			customer.DELETE("/cart/items/:productId", h.removeCartItem)

			customer.POST("/orders", h.createOrder)
			customer.GET("/orders", h.listOrders)
			customer.GET("/orders/:id", h.getOrder)
			customer.POST("/orders/:id/cancel", h.cancelOrder)
			customer.POST("/orders/:id/pay", h.initiatePayment)

			customer.GET("/payments/verify/:sessionId", h.verifyPayment)
		}

		admin := v1.Group("/admin")
		admin.Use(authMiddleware(h.tokens), adminOnly())
		{
			admin.GET("/dashboard", h.adminDashboard)

			admin.GET("/products", h.adminListProducts)
			admin.POST("/products", h.adminCreateProduct)
			admin.GET("/products/:id", h.adminGetProduct)
			admin.PUT("/products/:id", h.adminUpdateProduct)
			admin.DELETE("/products/:id", h.adminDeactivateProduct)

			admin.GET("/orders", h.adminListOrders)
			admin.GET("/orders/stats", h.adminOrderStats)
			admin.GET("/orders/:id", h.adminGetOrder)
			admin.POST("/orders/:id/approve", h.adminApproveOrder)
			admin.POST("/orders/:id/reject", h.adminRejectOrder)
			admin.PUT("/orders/:id/status", h.adminUpdateOrderStatus)
			admin.DELETE("/orders/:id", h.adminDeleteOrder)

			admin.GET("/users", h.adminListCustomers)

			admin.GET("/dealer-requests", h.adminListDealerRequests)
			admin.GET("/dealer-requests/:id", h.adminGetDealerRequest)
			admin.PUT("/dealer-requests/:id/status", h.adminUpdateDealerRequest)

			admin.GET("/settings", h.adminGetSettings)
			admin.PUT("/settings", h.adminUpdateSettings)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
		"time":         time.Now().Unix(),
	})
}

// respondError maps service errors to HTTP responses. Unexpected errors are
// logged in full and reported as a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	var cve *service.CartValidationError
	switch {
	case errors.As(err, &cve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Some cart items cannot be ordered",
			"violations": cve.Violations,
		})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExternal):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func parseIDParam(c *gin.Context, param, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
