package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/service"
	"grape-store/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) adminDashboard(c *gin.Context) {
	dash, err := h.svc.Stats.Dashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// products

func (h *Handler) adminListProducts(c *gin.Context) {
	limit, offset := pagination(c)
	products, err := h.svc.Catalog.ListProducts(c.Request.Context(), store.ProductFilter{
		Category: c.Query("category"),
		Search:   strings.TrimSpace(c.Query("search")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) adminGetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "product")
	if !ok {
		return
	}
	product, err := h.svc.Catalog.GetProduct(c.Request.Context(), id, true)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) adminCreateProduct(c *gin.Context) {
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.svc.Catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) adminUpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "product")
	if !ok {
		return
	}
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.svc.Catalog.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) adminDeactivateProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "product")
	if !ok {
		return
	}
	if err := h.svc.Catalog.DeactivateProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// orders

// parseOrderFilter reads status, payment_status, payment_method, search and
// a from/to date range (YYYY-MM-DD, to inclusive) from the query string.
func parseOrderFilter(c *gin.Context) (store.OrderFilter, bool) {
	limit, offset := pagination(c)
	f := store.OrderFilter{
		PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
		PaymentMethod: models.PaymentMethod(c.Query("payment_method")),
		Search:        strings.TrimSpace(c.Query("search")),
		Limit:         limit,
		Offset:        offset,
	}

	if f.PaymentMethod != "" && !f.PaymentMethod.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment method"})
		return f, false
	}

	if s := c.Query("status"); s != "" {
		status, ok := models.ParseOrderStatus(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown order status"})
			return f, false
		}
		f.Status = status
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
		add  int
	}{{"from", &f.From, 0}, {"to", &f.To, 1}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + p.name + " date, expected YYYY-MM-DD"})
			return f, false
		}
		t = t.AddDate(0, 0, p.add)
		*p.dst = &t
	}
	return f, true
}

func (h *Handler) adminListOrders(c *gin.Context) {
	f, ok := parseOrderFilter(c)
	if !ok {
		return
	}
	orders, total, err := h.svc.Admin.ListOrders(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
}

func (h *Handler) adminOrderStats(c *gin.Context) {
	stats, err := h.svc.Stats.OrderStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) adminGetOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	order, err := h.svc.Admin.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":          order,
		"next_statuses":  models.NextStatuses(order.Status),
		"terminal":       models.IsTerminal(order.Status),
		"effective":      order.Effective(),
		"counts_revenue": order.RevenueEligible(),
	})
}

type reviewBody struct {
	Note string `json:"note"`
}

func (h *Handler) adminApproveOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	var body reviewBody
	if c.Request.ContentLength > 0 && !bindJSON(c, &body) {
		return
	}
	order, err := h.svc.Admin.ApproveOrder(c.Request.Context(), currentUserID(c), orderID, body.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) adminRejectOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	var body reviewBody
	if c.Request.ContentLength > 0 && !bindJSON(c, &body) {
		return
	}
	order, err := h.svc.Admin.RejectOrder(c.Request.Context(), currentUserID(c), orderID, body.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) adminUpdateOrderStatus(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note"`
	}
	if !bindJSON(c, &body) {
		return
	}
	order, err := h.svc.Admin.UpdateStatus(c.Request.Context(), orderID, body.Status, body.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) adminDeleteOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	order, err := h.svc.Admin.DeleteOrder(c.Request.Context(), currentUserID(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// users

func (h *Handler) adminListCustomers(c *gin.Context) {
	limit, offset := pagination(c)
	customers, total, err := h.svc.Stats.ListCustomers(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": customers, "total": total})
}

// dealer requests

func (h *Handler) adminListDealerRequests(c *gin.Context) {
	limit, offset := pagination(c)
	requests, err := h.svc.Dealers.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dealer_requests": requests})
}

func (h *Handler) adminGetDealerRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "dealer request")
	if !ok {
		return
	}
	dr, err := h.svc.Dealers.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dr)
}

func (h *Handler) adminUpdateDealerRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "dealer request")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note"`
	}
	if !bindJSON(c, &body) {
		return
	}
	dr, err := h.svc.Dealers.UpdateStatus(c.Request.Context(), id, body.Status, body.Note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dr)
}

// settings

func (h *Handler) adminGetSettings(c *gin.Context) {
	settings, err := h.svc.Settings.All(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) adminUpdateSettings(c *gin.Context) {
	var values map[string]json.RawMessage
	if !bindJSON(c, &values) {
		return
	}
	if err := h.svc.Settings.Update(c.Request.Context(), values); err != nil {
		h.respondError(c, err)
		return
	}

	settings, err := h.svc.Settings.All(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
