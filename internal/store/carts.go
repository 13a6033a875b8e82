package store

import (
	"context"
	"fmt"

	"grape-store/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetOrCreateCart returns the user's cart with its items, creating it on first access
func (s *Store) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	query := `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at, updated_at`

	if err := s.db.GetContext(ctx, &cart, query, userID); err != nil {
		return nil, fmt.Errorf("failed to upsert cart: %w", err)
	}

	cart.Items = []models.CartItem{}
	err := s.db.SelectContext(ctx, &cart.Items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	return &cart, nil
}

// SaveCartItems replaces the cart's items with the given set
func (s *Store) SaveCartItems(ctx context.Context, cartID int64, items []models.CartItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	for i := range items {
		if err := insertCartItem(ctx, tx, cartID, &items[i]); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE carts SET updated_at = NOW() WHERE id = $1", cartID); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	return tx.Commit()
}

// ClearCart removes every item from the cart
func (s *Store) ClearCart(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return err
}

func insertCartItem(ctx context.Context, tx *sqlx.Tx, cartID int64, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, product_name, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	item.CartID = cartID
	if err := tx.GetContext(ctx, &item.ID, query,
		cartID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Subtotal); err != nil {
		return fmt.Errorf("failed to insert cart item: %w", err)
	}
	return nil
}
