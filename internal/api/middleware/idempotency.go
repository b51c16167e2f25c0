package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/repository"
)

const IdempotencyKeyHeader = "Idempotency-Key"

const (
	idempotencyKeyCtx        = "idempotency_key"
	idempotencyHashCtx       = "idempotency_request_hash"
	idempotencyExistingCtx   = "idempotency_existing_order_id"
	maxIdempotentRequestBody = 1 << 20
)

// IdempotencyMiddleware handles idempotency key validation. It must run after
// AuthMiddleware: keys are scoped to the authenticated seller.
func IdempotencyMiddleware(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to POST/PUT/PATCH requests
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		// Read request body
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotentRequestBody))
		if err != nil {
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			abort(c, http.StatusInternalServerError, "failed to process request")
			return
		}

		// Restore body for handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		// Calculate request hash
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		// Check if key exists
		existingKey, err := repos.IdempotencyKey.GetByKey(c.Request.Context(), idempotencyKey)
		if err != nil {
			logger.Error("Failed to check idempotency key", zap.Error(err))
			c.Next()
			return
		}

		if existingKey != nil {
			seller, _ := GetSellerFromContext(c)
			// Same key, different payload or different seller - conflict
			if existingKey.RequestHash != requestHash || seller == nil || existingKey.SellerID != seller.ID {
				abort(c, http.StatusConflict, "idempotency key conflict: same key used with different payload")
				return
			}

			// Same key, same payload - replay existing order
			c.Set(idempotencyExistingCtx, existingKey.OrderID.String())
		} else {
			// New key - will be stored after the update succeeds
			c.Set(idempotencyKeyCtx, idempotencyKey)
			c.Set(idempotencyHashCtx, requestHash)
		}

		c.Next()
	}
}

// GetIdempotencyInfo retrieves idempotency information from context
func GetIdempotencyInfo(c *gin.Context) (key string, requestHash string, existingOrderID uuid.UUID, isExisting bool) {
	if existingID, exists := c.Get(idempotencyExistingCtx); exists {
		if s, ok := existingID.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return "", "", id, true
			}
		}
	}

	keyVal, _ := c.Get(idempotencyKeyCtx)
	hashVal, _ := c.Get(idempotencyHashCtx)

	key, _ = keyVal.(string)
	requestHash, _ = hashVal.(string)

	return key, requestHash, uuid.Nil, false
}
