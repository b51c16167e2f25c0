package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seller represents a shop owner acting on its orders
type Seller struct {
	ID           uuid.UUID
	Name         string
	Email        string
	APIKeyHash   string
	APIKeyLookup string // SHA256(apiKey) hex for fast lookup
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Customer is the buyer snapshot taken at order time
type Customer struct {
	ID        string
	FullNames string
	Email     string
	Phone     string
}

// Courier is attached once an order ships
type Courier struct {
	Name              string
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// ProcessEntry is one line of an order's append-only audit trail
type ProcessEntry struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	Sequence int // order version the entry produced; 1 for the creation entry
	Status   OrderStatus
	Note     string
	Process  string // "<Status> - <Note>"
	Images   []string
	Date     time.Time
}

// Order represents a single-product customer purchase tracked through fulfilment
type Order struct {
	ID              uuid.UUID
	TrackingNumber  string
	SellerID        uuid.UUID
	Status          OrderStatus
	Version         int
	ProductName     string
	Quantity        int
	FinalUnitPrice  decimal.Decimal
	FinalTotalPrice decimal.Decimal
	Discount        decimal.Decimal
	Images          []string
	Customer        Customer
	Address         map[string]interface{} // JSONB
	Courier         *Courier
	Processes       []ProcessEntry
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IdempotencyKey stores idempotency information
type IdempotencyKey struct {
	Key         string
	SellerID    uuid.UUID
	OrderID     uuid.UUID
	RequestHash string
	CreatedAt   time.Time
}

// OrderFilter narrows a seller's order list
type OrderFilter struct {
	Search string // tracking number, product name or customer name
	Status *OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
