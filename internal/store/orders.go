package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"grape-store/internal/models"
)

// OrderFilter narrows order listings
type OrderFilter struct {
	UserID        int64
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	PaymentMethod models.PaymentMethod
	Search        string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// CreateOrder persists the order, its items and first history entry, and
// clears the source cart, all in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, cartID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			order_code, user_id, customer_name, customer_mobile, customer_email,
			address_line, city, state, postal_code,
			items_total, delivery_charges, total,
			payment_method, payment_status, status, approval_status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.OrderCode, order.UserID, order.CustomerName, order.CustomerMobile, order.CustomerEmail,
		order.AddressLine, order.City, order.State, order.PostalCode,
		order.ItemsTotal, order.DeliveryCharges, order.Total,
		order.PaymentMethod, order.PaymentStatus, order.Status, order.ApprovalStatus, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == orderCodeConstraint {
				return fmt.Errorf("%w %s", ErrDuplicateOrderCode, order.OrderCode)
			}
			return fmt.Errorf("%w: order %s", ErrDuplicate, order.OrderCode)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := tx.GetContext(ctx, &item.ID, itemQuery,
			order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for i := range order.History {
		entry := &order.History[i]
		entry.OrderID = order.ID
		if err := tx.GetContext(ctx, &entry.ID,
			"INSERT INTO order_status_history (order_id, status, note, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
			order.ID, entry.Status, entry.Note, entry.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert status history: %w", err)
		}
	}

	if cartID != 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateOrder writes the mutable lifecycle fields of an order and appends
// the history entry if one is given. Pricing and line items are never written.
func (s *Store) UpdateOrder(ctx context.Context, order *models.Order, entry *models.StatusHistoryEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE orders SET
			payment_status = $1, transaction_id = $2, payment_gateway = $3, paid_at = $4,
			status = $5, reviewed_by = $6, reviewed_at = $7, review_note = $8, approval_status = $9,
			is_locked = $10, delivered_at = $11, cancelled_by = $12, cancel_reason = $13,
			updated_at = NOW()
		WHERE id = $14
		RETURNING updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.PaymentStatus, order.TransactionID, order.PaymentGateway, order.PaidAt,
		order.Status, order.ReviewedBy, order.ReviewedAt, order.ReviewNote, order.ApprovalStatus,
		order.IsLocked, order.DeliveredAt, order.CancelledBy, order.CancelReason,
		order.ID,
	).Scan(&order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: order %d", ErrNotFound, order.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if entry != nil {
		entry.OrderID = order.ID
		if err := tx.GetContext(ctx, &entry.ID,
			"INSERT INTO order_status_history (order_id, status, note, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
			order.ID, entry.Status, entry.Note, entry.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert status history: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items and history
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return s.getOrder(ctx, "id = $1", id)
}

// GetOrderByCode retrieves an order by its human-readable code
func (s *Store) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	return s.getOrder(ctx, "order_code = $1", code)
}

// GetOrderByTransactionID retrieves an order by its gateway transaction id
func (s *Store) GetOrderByTransactionID(ctx context.Context, txID string) (*models.Order, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: empty transaction id", ErrNotFound)
	}
	return s.getOrder(ctx, "transaction_id = $1", txID)
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	order, err := s.getOrder(ctx, "idempotency_key = $1", key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return order, err
}

func (s *Store) getOrder(ctx context.Context, where string, arg interface{}) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %v", ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", order.ID); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	if err := s.db.SelectContext(ctx, &order.History,
		"SELECT * FROM order_status_history WHERE order_id = $1 ORDER BY id", order.ID); err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}

	return &order, nil
}

// ListOrders retrieves orders matching the filter, newest first, with the total match count
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != 0 {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", f.PaymentStatus)
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", f.PaymentMethod)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(order_code ILIKE $%d OR customer_name ILIKE $%d OR customer_email ILIKE $%d)", n, n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := "SELECT * FROM orders" + where + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ListOrderFacts retrieves the reporting projection of every order created at or after since
func (s *Store) ListOrderFacts(ctx context.Context, since time.Time) ([]models.OrderFact, error) {
	facts := []models.OrderFact{}
	err := s.db.SelectContext(ctx, &facts, `
		SELECT id, user_id, status, payment_status, payment_method, total, created_at
		FROM orders
		WHERE created_at >= $1`, since)
	return facts, err
}

// ListOrderItemFacts retrieves every line item joined with its order's reporting fields
func (s *Store) ListOrderItemFacts(ctx context.Context) ([]models.OrderItemFact, error) {
	facts := []models.OrderItemFact{}
	err := s.db.SelectContext(ctx, &facts, `
		SELECT oi.product_id, oi.product_name, oi.quantity, oi.subtotal,
		       o.status, o.payment_status, o.payment_method
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id`)
	return facts, err
}
