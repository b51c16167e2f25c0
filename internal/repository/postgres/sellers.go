package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/pkg/errors"
)

type sellerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSellerRepository creates a new seller repository
func NewSellerRepository(db *sql.DB, logger *zap.Logger) *sellerRepository {
	return &sellerRepository{
		db:     db,
		logger: logger,
	}
}

func (r *sellerRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Seller, error) {
	// Direct lookup by api_key_lookup (SHA256 hex), then verify with bcrypt.
	lookupKey := repository.APIKeyLookup(apiKey)
	query := `
		SELECT id, name, email, api_key_hash, api_key_lookup, is_active, created_at, updated_at
		FROM sellers
		WHERE is_active = true AND api_key_lookup = $1
	`

	seller, err := r.scanSeller(r.db.QueryRowContext(ctx, query, lookupKey))
	if err == sql.ErrNoRows {
		r.logger.Info("API key did not match any seller", zap.String("lookup_key_prefix", safePrefix(lookupKey, 8)))
		return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
	}
	if err != nil {
		r.logger.Error("Failed to get seller by API key", zap.Error(err))
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(seller.APIKeyHash), []byte(apiKey)) != nil {
		r.logger.Debug("API key lookup found seller but bcrypt verification failed", zap.String("seller_id", seller.ID.String()))
		return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
	}

	return seller, nil
}

func safePrefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (r *sellerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	query := `
		SELECT id, name, email, api_key_hash, api_key_lookup, is_active, created_at, updated_at
		FROM sellers
		WHERE id = $1
	`

	seller, err := r.scanSeller(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "seller", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get seller by ID", zap.Error(err))
		return nil, err
	}

	return seller, nil
}

func (r *sellerRepository) scanSeller(row *sql.Row) (*domain.Seller, error) {
	var seller domain.Seller
	var lookup sql.NullString

	err := row.Scan(
		&seller.ID,
		&seller.Name,
		&seller.Email,
		&seller.APIKeyHash,
		&lookup,
		&seller.IsActive,
		&seller.CreatedAt,
		&seller.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lookup.Valid {
		seller.APIKeyLookup = lookup.String
	}
	return &seller, nil
}

func (r *sellerRepository) Create(ctx context.Context, seller *domain.Seller) error {
	query := `
		INSERT INTO sellers (id, name, email, api_key_hash, api_key_lookup, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now()
	if seller.ID == uuid.Nil {
		seller.ID = uuid.New()
	}
	if seller.CreatedAt.IsZero() {
		seller.CreatedAt = now
	}
	if seller.UpdatedAt.IsZero() {
		seller.UpdatedAt = now
	}

	var apiKeyLookup interface{}
	if seller.APIKeyLookup != "" {
		apiKeyLookup = seller.APIKeyLookup
	}
	_, err := r.db.ExecContext(ctx, query,
		seller.ID,
		seller.Name,
		seller.Email,
		seller.APIKeyHash,
		apiKeyLookup,
		seller.IsActive,
		seller.CreatedAt,
		seller.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create seller", zap.Error(err))
		return err
	}

	return nil
}
