package service

import (
	"context"
	"encoding/json"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/store"
)

// The interfaces below are the slices of *store.Store each service needs.

type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	CountProducts(ctx context.Context) (int, error)
}

type CartStore interface {
	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	SaveCartItems(ctx context.Context, cartID int64, items []models.CartItem) error
	ClearCart(ctx context.Context, cartID int64) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, cartID int64) error
	UpdateOrder(ctx context.Context, order *models.Order, entry *models.StatusHistoryEntry) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	GetOrderByTransactionID(ctx context.Context, txID string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, role string, limit, offset int) ([]models.User, error)
	CountUsers(ctx context.Context, role string) (int, error)
}

type SettingStore interface {
	GetSetting(ctx context.Context, key string) (json.RawMessage, error)
	ListSettings(ctx context.Context) ([]models.Setting, error)
	UpsertSetting(ctx context.Context, key string, value json.RawMessage) error
}

type DealerStore interface {
	CreateDealerRequest(ctx context.Context, d *models.DealerRequest) error
	GetDealerRequest(ctx context.Context, id int64) (*models.DealerRequest, error)
	ListDealerRequests(ctx context.Context, status string, limit, offset int) ([]models.DealerRequest, error)
	UpdateDealerRequestStatus(ctx context.Context, id int64, status, note string) error
	CountDealerRequests(ctx context.Context, status string) (int, error)
}

// ReportStore serves the read-only reporting queries.
type ReportStore interface {
	ListOrderFacts(ctx context.Context, since time.Time) ([]models.OrderFact, error)
	ListOrderItemFacts(ctx context.Context) ([]models.OrderItemFact, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int, error)
	ListUsers(ctx context.Context, role string, limit, offset int) ([]models.User, error)
	CountUsers(ctx context.Context, role string) (int, error)
	CountProducts(ctx context.Context) (int, error)
	CountDealerRequests(ctx context.Context, status string) (int, error)
}

// Locker serializes work on a key across processes.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Notifier publishes order events for the notification worker.
type Notifier interface {
	Publish(ctx context.Context, event *models.OrderEvent) error
}
