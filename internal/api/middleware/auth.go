package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository"
)

const SellerContextKey = "seller"

// AuthMiddleware authenticates sellers using their API key
func AuthMiddleware(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// Extract Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		apiKey := strings.TrimSpace(parts[1])
		if apiKey == "" {
			abort(c, http.StatusUnauthorized, "missing API key")
			return
		}

		// SHA-256 lookup, then bcrypt verification inside the repository
		seller, err := repos.Seller.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			logger.Warn("Failed to authenticate seller", zap.Error(err))
			abort(c, http.StatusUnauthorized, "invalid API key")
			return
		}

		if !seller.IsActive {
			abort(c, http.StatusUnauthorized, "seller account is inactive")
			return
		}

		// Store seller in context
		c.Set(SellerContextKey, seller)
		c.Next()
	}
}

// GetSellerFromContext retrieves the seller from the Gin context
func GetSellerFromContext(c *gin.Context) (*domain.Seller, bool) {
	seller, exists := c.Get(SellerContextKey)
	if !exists {
		return nil, false
	}

	s, ok := seller.(*domain.Seller)
	return s, ok
}

// HashAPIKey hashes an API key using bcrypt
func HashAPIKey(apiKey string) (string, error) {
	// Use a cost of 10 for API keys (faster than passwords)
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAPIKey verifies an API key against a hash
func VerifyAPIKey(apiKey, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey))
	return err == nil
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, dto.Envelope[any]{Status: code, Message: message})
}
