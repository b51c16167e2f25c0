package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Seller:         NewSellerRepository(db, logger),
		Order:          NewOrderRepository(db, logger),
		OrderProcess:   NewOrderProcessRepository(db, logger),
		IdempotencyKey: NewIdempotencyKeyRepository(db, logger),
	}
}
