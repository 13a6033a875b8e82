package api

import (
	"io"
	"net/http"
	"strings"

	"grape-store/internal/service"
	"grape-store/internal/store"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Auth.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.Auth.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// products

func (h *Handler) listProducts(c *gin.Context) {
	limit, offset := pagination(c)
	products, err := h.svc.Catalog.ListProducts(c.Request.Context(), store.ProductFilter{
		Category:   c.Query("category"),
		Search:     strings.TrimSpace(c.Query("search")),
		ActiveOnly: true,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "product")
	if !ok {
		return
	}
	product, err := h.svc.Catalog.GetProduct(c.Request.Context(), id, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// cart

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.svc.Carts.GetCart(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart, "total": cart.Total()})
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.CartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	cart, err := h.svc.Carts.AddItem(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart, "total": cart.Total()})
}

func (h *Handler) updateCartItem(c *gin.Context) {
	productID, ok := parseIDParam(c, "productId", "product")
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if !bindJSON(c, &body) {
		return
	}

	cart, err := h.svc.Carts.UpdateItem(c.Request.Context(), currentUserID(c), &service.CartItemRequest{
		ProductID: productID,
		Quantity:  body.Quantity,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart, "total": cart.Total()})
}

func (h *Handler) removeCartItem(c *gin.Context) {
	productID, ok := parseIDParam(c, "productId", "product")
	if !ok {
		return
	}
	cart, err := h.svc.Carts.RemoveItem(c.Request.Context(), currentUserID(c), productID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart, "total": cart.Total()})
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.svc.Carts.ClearCart(c.Request.Context(), currentUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// orders

// createOrder handles checkout of the caller's cart
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.svc.Orders.CreateOrder(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	limit, offset := pagination(c)
	orders, total, err := h.svc.Orders.ListOrders(c.Request.Context(), currentUserID(c), c.Query("status"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	order, err := h.svc.Orders.GetOrder(c.Request.Context(), currentUserID(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &body) {
		return
	}

	order, err := h.svc.Orders.CancelOrder(c.Request.Context(), currentUserID(c), orderID, body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// payments

func (h *Handler) initiatePayment(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	res, err := h.svc.Payments.InitiatePayment(c.Request.Context(), currentUserID(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	order, err := h.svc.Payments.VerifySession(c.Request.Context(), currentUserID(c), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":       order.ID,
		"order_code":     order.OrderCode,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})
}

// paymentWebhook receives gateway callbacks. The raw body is needed for
// signature verification.
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read body"})
		return
	}

	if err := h.svc.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// misc

func (h *Handler) submitDealerRequest(c *gin.Context) {
	var req service.DealerRequestInput
	if !bindJSON(c, &req) {
		return
	}
	dr, err := h.svc.Dealers.Submit(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dr)
}

func (h *Handler) publicSettings(c *gin.Context) {
	settings, err := h.svc.Settings.Public(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
