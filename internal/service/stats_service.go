package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/store"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

// StatsService computes dashboard and reporting figures. Every figure is
// derived through models.IsEffective and models.IsRevenueEligible.
type StatsService struct {
	store  ReportStore
	logger *zap.Logger
	now    func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(store ReportStore) *StatsService {
	return &StatsService{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// OrderSummary aggregates a set of orders
type OrderSummary struct {
	TotalOrders       int                        `json:"total_orders"`
	TotalRevenue      int64                      `json:"total_revenue"`
	PaidOrders        int                        `json:"paid_orders"`
	PendingReview     int                        `json:"pending_review"`
	CancelledOrders   int                        `json:"cancelled_orders"`
	RejectedOrders    int                        `json:"rejected_orders"`
	AverageOrderValue int64                      `json:"average_order_value"`
	ByStatus          map[models.OrderStatus]int `json:"by_status"`
}

// MonthlyRevenue is revenue collected from orders placed in one month
type MonthlyRevenue struct {
	Month   string `json:"month"`
	Revenue int64  `json:"revenue"`
	Orders  int    `json:"orders"`
}

// ProductSales ranks products by quantity ordered
type ProductSales struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Revenue     int64  `json:"revenue"`
}

// UserSpend is one customer's order count and money spent
type UserSpend struct {
	OrderCount int   `json:"order_count"`
	TotalSpent int64 `json:"total_spent"`
}

// CustomerStats pairs a customer with their spend
type CustomerStats struct {
	models.User
	UserSpend
}

// Dashboard is the admin landing page payload
type Dashboard struct {
	TotalOrders           int                        `json:"total_orders"`
	TotalRevenue          int64                      `json:"total_revenue"`
	TotalCustomers        int                        `json:"total_customers"`
	TotalProducts         int                        `json:"total_products"`
	PendingDealerRequests int                        `json:"pending_dealer_requests"`
	PendingReview         int                        `json:"pending_review"`
	OrdersByStatus        map[models.OrderStatus]int `json:"orders_by_status"`
	MonthlyRevenue        []MonthlyRevenue           `json:"monthly_revenue"`
	RecentOrders          []models.Order             `json:"recent_orders"`
	TopProducts           []ProductSales             `json:"top_products"`
}

// summarize counts effective orders and sums revenue-eligible totals.
func summarize(facts []models.OrderFact) OrderSummary {
	s := OrderSummary{ByStatus: make(map[models.OrderStatus]int)}
	for _, f := range facts {
		s.ByStatus[f.Status]++
		switch f.Status {
		case models.OrderStatusCancelled:
			s.CancelledOrders++
		case models.OrderStatusRejected:
			s.RejectedOrders++
		case models.OrderStatusSubmitted:
			s.PendingReview++
		}
		if f.Effective() {
			s.TotalOrders++
		}
		if f.RevenueEligible() {
			s.PaidOrders++
			s.TotalRevenue += f.Total
		}
	}
	if s.PaidOrders > 0 {
		s.AverageOrderValue = s.TotalRevenue / int64(s.PaidOrders)
	}
	return s
}

// monthlyRevenue buckets revenue-eligible orders by creation month for the
// given number of months ending with now's month, oldest first.
func monthlyRevenue(facts []models.OrderFact, now time.Time, months int) []MonthlyRevenue {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)

	out := make([]MonthlyRevenue, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		out[i].Month = key
		index[key] = i
	}

	for _, f := range facts {
		if !f.RevenueEligible() {
			continue
		}
		i, ok := index[f.CreatedAt.In(now.Location()).Format("2006-01")]
		if !ok {
			continue
		}
		out[i].Revenue += f.Total
		out[i].Orders++
	}
	return out
}

// spendByUser counts effective orders and revenue-eligible spend per user.
func spendByUser(facts []models.OrderFact) map[int64]UserSpend {
	out := make(map[int64]UserSpend)
	for _, f := range facts {
		spend := out[f.UserID]
		if f.Effective() {
			spend.OrderCount++
		}
		if f.RevenueEligible() {
			spend.TotalSpent += f.Total
		}
		out[f.UserID] = spend
	}
	return out
}

// topProducts ranks products by quantity on effective orders.
func topProducts(items []models.OrderItemFact, n int) []ProductSales {
	byProduct := make(map[int64]*ProductSales)
	for _, item := range items {
		if !models.IsEffective(item.Status) {
			continue
		}
		ps, ok := byProduct[item.ProductID]
		if !ok {
			ps = &ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
			byProduct[item.ProductID] = ps
		}
		ps.Quantity += item.Quantity
		if models.IsRevenueEligible(item.Status, item.PaymentStatus, item.PaymentMethod) {
			ps.Revenue += item.Subtotal
		}
	}

	out := make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// OrderStats returns the admin order summary
func (s *StatsService) OrderStats(ctx context.Context) (*OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.OrderStats")
	defer span.End()

	facts, err := s.store.ListOrderFacts(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	summary := summarize(facts)
	return &summary, nil
}

// Dashboard assembles the admin dashboard
func (s *StatsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.Dashboard")
	defer span.End()

	facts, err := s.store.ListOrderFacts(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	items, err := s.store.ListOrderItemFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	customers, err := s.store.CountUsers(ctx, models.RoleCustomer)
	if err != nil {
		return nil, err
	}
	products, err := s.store.CountProducts(ctx)
	if err != nil {
		return nil, err
	}
	pendingDealers, err := s.store.CountDealerRequests(ctx, models.DealerStatusPending)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.store.ListOrders(ctx, store.OrderFilter{Limit: 5})
	if err != nil {
		return nil, err
	}

	summary := summarize(facts)
	return &Dashboard{
		TotalOrders:           summary.TotalOrders,
		TotalRevenue:          summary.TotalRevenue,
		TotalCustomers:        customers,
		TotalProducts:         products,
		PendingDealerRequests: pendingDealers,
		PendingReview:         summary.PendingReview,
		OrdersByStatus:        summary.ByStatus,
		MonthlyRevenue:        monthlyRevenue(facts, s.now(), 12),
		RecentOrders:          recent,
		TopProducts:           topProducts(items, 5),
	}, nil
}

// ListCustomers lists customers with their order count and spend
func (s *StatsService) ListCustomers(ctx context.Context, limit, offset int) ([]CustomerStats, int, error) {
	ctx, span := util.StartSpan(ctx, "StatsService.ListCustomers")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	users, err := s.store.ListUsers(ctx, models.RoleCustomer, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountUsers(ctx, models.RoleCustomer)
	if err != nil {
		return nil, 0, err
	}
	facts, err := s.store.ListOrderFacts(ctx, time.Time{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load orders: %w", err)
	}

	spend := spendByUser(facts)
	out := make([]CustomerStats, 0, len(users))
	for _, u := range users {
		out = append(out, CustomerStats{User: u, UserSpend: spend[u.ID]})
	}
	return out, total, nil
}
