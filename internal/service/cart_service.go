package service

import (
	"context"
	"fmt"

	"grape-store/internal/models"
	"grape-store/internal/util"

	"go.uber.org/zap"
)

// CartService manages per-user carts. Cart prices follow the live catalog
// and are refreshed on every mutation.
type CartService struct {
	carts    CartStore
	products ProductStore
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartStore, products ProductStore) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   util.GetLogger(),
	}
}

// CartItemRequest adds or updates a cart line
type CartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// GetCart returns the user's cart, creating it on first access
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	return s.carts.GetOrCreateCart(ctx, userID)
}

// AddItem adds quantity of a product to the cart. Adding a product that is
// already in the cart increments its quantity.
func (s *CartService) AddItem(ctx context.Context, userID int64, req *CartItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := cart.Items
	idx := findCartItem(items, req.ProductID)
	if idx < 0 {
		items = append(items, models.CartItem{ProductID: req.ProductID})
		idx = len(items) - 1
	}
	items[idx].Quantity += req.Quantity

	return s.save(ctx, cart, items, req.ProductID)
}

// UpdateItem sets the quantity of a product already in the cart
func (s *CartService) UpdateItem(ctx context.Context, userID int64, req *CartItemRequest) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := findCartItem(cart.Items, req.ProductID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: product %d is not in the cart", ErrNotFound, req.ProductID)
	}
	items := cart.Items
	items[idx].Quantity = req.Quantity

	return s.save(ctx, cart, items, req.ProductID)
}

// RemoveItem drops a product from the cart
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := findCartItem(cart.Items, productID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: product %d is not in the cart", ErrNotFound, productID)
	}
	items := append(cart.Items[:idx:idx], cart.Items[idx+1:]...)

	return s.save(ctx, cart, items, 0)
}

// ClearCart empties the cart
func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.carts.ClearCart(ctx, cart.ID)
}

// save refreshes prices, checks the touched product, and persists items.
func (s *CartService) save(ctx context.Context, cart *models.Cart, items []models.CartItem, touched int64) (*models.Cart, error) {
	products, err := s.loadProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	if touched != 0 {
		idx := findCartItem(items, touched)
		if violations := validateCartItems(items[idx:idx+1], products); len(violations) > 0 {
			return nil, &CartValidationError{Violations: violations}
		}
	}

	refreshCartPrices(items, products)

	if err := s.carts.SaveCartItems(ctx, cart.ID, items); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	cart.Items = items
	return cart, nil
}

// ValidateCart checks every cart line against the live catalog and returns
// the products keyed by ID when all lines can be ordered.
func (s *CartService) ValidateCart(ctx context.Context, cart *models.Cart) (map[int64]*models.Product, error) {
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	products, err := s.loadProducts(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	if violations := validateCartItems(cart.Items, products); len(violations) > 0 {
		return nil, &CartValidationError{Violations: violations}
	}
	return products, nil
}

func (s *CartService) loadProducts(ctx context.Context, items []models.CartItem) (map[int64]*models.Product, error) {
	productMap := make(map[int64]*models.Product, len(items))
	if len(items) == 0 {
		return productMap, nil
	}

	productIDs := make([]int64, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	products, err := s.products.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	return productMap, nil
}

// validateCartItems returns one violation per line that cannot be ordered.
func validateCartItems(items []models.CartItem, products map[int64]*models.Product) []CartViolation {
	var violations []CartViolation
	for _, item := range items {
		product, ok := products[item.ProductID]
		switch {
		case !ok:
			violations = append(violations, CartViolation{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Reason:      "product no longer exists",
			})
		case !product.IsActive:
			violations = append(violations, CartViolation{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Reason:      "product is not available",
			})
		case product.Stock < item.Quantity:
			violations = append(violations, CartViolation{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Reason:      fmt.Sprintf("only %d in stock", product.Stock),
			})
		}
	}
	return violations
}

// refreshCartPrices copies live name and price onto each line and
// recomputes subtotals. Lines whose product is gone keep their last price.
func refreshCartPrices(items []models.CartItem, products map[int64]*models.Product) {
	for i := range items {
		if product, ok := products[items[i].ProductID]; ok {
			items[i].ProductName = product.Name
			items[i].Price = product.Price
		}
		items[i].Subtotal = items[i].Price * int64(items[i].Quantity)
	}
}

func findCartItem(items []models.CartItem, productID int64) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
