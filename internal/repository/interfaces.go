package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/kicksideshop/orderapi/internal/domain"
)

// SellerRepository defines seller data access methods
type SellerRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Seller, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error)
	Create(ctx context.Context, seller *domain.Seller) error
}

// OrderRepository defines order data access methods.
// Orders returned by Get* and List* do not carry their process log; use
// OrderProcessRepository for that.
type OrderRepository interface {
	// Create stores the order together with order.Processes (the creation entries).
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error)
	ListBySellerID(ctx context.Context, sellerID uuid.UUID, filter domain.OrderFilter) ([]*domain.Order, error)
	// AppendProcess sets the order status to entry.Status and appends entry in
	// one atomic step. It fails with *errors.ErrConflict when the stored version
	// is not expectedVersion. On success entry.Sequence holds the new version.
	AppendProcess(ctx context.Context, orderID uuid.UUID, expectedVersion int, entry *domain.ProcessEntry, courier *domain.Courier) error
}

// OrderProcessRepository defines process log data access methods
type OrderProcessRepository interface {
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.ProcessEntry, error)
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}

// Repositories aggregates all repositories
type Repositories struct {
	Seller         SellerRepository
	Order          OrderRepository
	OrderProcess   OrderProcessRepository
	IdempotencyKey IdempotencyKeyRepository
}

// APIKeyLookup returns SHA256(apiKey) hex, the indexed column used to find a
// seller before the bcrypt check.
func APIKeyLookup(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}
