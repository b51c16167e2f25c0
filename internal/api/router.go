package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kicksideshop/orderapi/internal/api/dto"
	"github.com/kicksideshop/orderapi/internal/api/handlers"
	"github.com/kicksideshop/orderapi/internal/api/middleware"
	"github.com/kicksideshop/orderapi/internal/config"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/internal/service"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, repos *repository.Repositories, svc *service.OrderService, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.Envelope[any]{Status: http.StatusNotFound, Message: "route not found"})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.Envelope[any]{Status: http.StatusOK, Message: "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orders := router.Group("/api/order")
	{
		orders.GET("/statuses", handlers.HandleGetStatuses(svc.Lifecycle(), logger))

		// Seller routes (require authentication)
		seller := orders.Group("")
		seller.Use(middleware.AuthMiddleware(repos, logger))
		seller.Use(middleware.IdempotencyMiddleware(repos, logger))
		{
			seller.GET("/seller-view-orders", handlers.HandleListSellerOrders(svc, logger))
			seller.GET("/view-single-product-order-details/:id", handlers.HandleGetOrder(svc, logger))
			seller.GET("/timeline/:id", handlers.HandleGetTimeline(svc, logger))
			seller.GET("/processes/:id", handlers.HandleGetOrderProcesses(svc, logger))
			seller.PUT("/update-order-status", handlers.HandleUpdateOrderStatus(svc, repos, logger))
			seller.PUT("/add-single-product-order-process", handlers.HandleAddOrderProcess(svc, repos, logger))
			seller.PUT("/cancel-order", handlers.HandleCancelOrder(svc, repos, logger))
		}
	}

	return router
}

// customRecovery logs panics and answers with a generic message
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Envelope[any]{
			Status:  http.StatusInternalServerError,
			Message: handlers.GenericErrorMessage,
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
